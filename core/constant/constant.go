package constant

const (
	// etcd key holding the composition descriptor document. The value is
	// the raw YAML document, written by operator tooling.
	CompositionDefinition = "/relay/composition"

	DefaultFailureThreshold = 3
	DefaultCooldownSec      = 30
	DefaultProbeIntervalSec = 10
	DefaultProbeTimeoutSec  = 5
)

var (
	StrHost            = []byte("Host")
	StrGet             = []byte("GET")
	StrApplicationJson = []byte("application/json")

	UriSlash           = []byte("/")
	AnyMatchIdentifier = []byte("*")
)
