package utils

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	defaultConfigPath = "./conf.yaml"
)

type Config struct {
	Server struct {
		Name       string `yaml:"Name"`
		ListenHost string `yaml:"ListenHost"`
		ListenPort int    `yaml:"ListenPort"`

		Concurrency        int  `yaml:"Concurrency"`
		DisabledKeepAlive  bool `yaml:"DisabledKeepAlive"`
		ReadBufferSize     int  `yaml:"ReadBufferSize"`
		WriteBufferSize    int  `yaml:"WriteBufferSize"`
		MaxRequestBodySize int  `yaml:"MaxRequestBodySize"`
		ReduceMemoryUsage  bool `yaml:"ReduceMemoryUsage"`
	} `yaml:"Server"`

	Descriptor struct {
		// file path of the composition descriptor
		Path string `yaml:"Path"`
		// etcd key of the descriptor document, enables the etcd source
		// and the watch-driven reload when set
		EtcdKey string `yaml:"EtcdKey"`
	} `yaml:"Descriptor"`

	Etcd struct {
		Name      string   `yaml:"Name"`
		Endpoints []string `yaml:"Endpoints"`
		Username  string   `yaml:"Username"`
		Password  string   `yaml:"Password"`

		AutoSyncInterval     int `yaml:"AutoSyncInterval"`
		DialTimeout          int `yaml:"DialTimeout"`
		DialKeepAliveTime    int `yaml:"DialKeepAliveTime"`
		DialKeepAliveTimeout int `yaml:"DialKeepAliveTimeout"`
	} `yaml:"Etcd"`

	Health struct {
		FailureThreshold int `yaml:"FailureThreshold"`
		CooldownSec      int `yaml:"CooldownSec"`
		ProbeIntervalSec int `yaml:"ProbeIntervalSec"`
		ProbeTimeoutSec  int `yaml:"ProbeTimeoutSec"`
	} `yaml:"Health"`

	Limiter struct {
		PerSecond  float64 `yaml:"PerSecond"`
		Burst      int     `yaml:"Burst"`
		IdleTTLSec int     `yaml:"IdleTTLSec"`
	} `yaml:"Limiter"`

	Counter struct {
		ShardNumber       int    `yaml:"ShardNumber"`
		PersistencePeriod int    `yaml:"PersistencePeriod"`
		RedisAddr         string `yaml:"RedisAddr"`
		RedisPassword     string `yaml:"RedisPassword"`
	} `yaml:"Counter"`

	Admin struct {
		ListenAddr string `yaml:"ListenAddr"`
		JwtSecret  string `yaml:"JwtSecret"`
	} `yaml:"Admin"`
}

// ReadConfig loads the yaml configuration. Outside production
// (IS_PRODUCTION != "1") the file name gets a `_test` suffix, the same
// convention the deployment tooling relies on.
func ReadConfig(path ...string) *Config {
	var f *os.File
	var err error
	var config Config
	var isProductionEnv bool
	var configFilePath string

	// env IS_PRODUCTION
	if os.Getenv("IS_PRODUCTION") == "1" {
		isProductionEnv = true
	}

	// env CONFIG_PATH
	if len(path) == 1 {
		configFilePath = path[0]
	} else if len(path) == 0 {
		configFilePath = os.Getenv("CONFIG_PATH")
		if configFilePath == "" {
			configFilePath = defaultConfigPath
		}
	} else {
		log.Fatal("only one path could be passed in")
	}

	if !isProductionEnv {
		fp := strings.Split(configFilePath, ".")
		fpLen := len(fp)
		if fpLen > 1 {
			fp[fpLen-2] += "_test"
			configFilePath = strings.Join(fp, ".")
		} else if fpLen == 1 {
			configFilePath += "_test"
		} else {
			log.Fatal(fmt.Sprintf("lack of config file path, %s", configFilePath))
		}
	}
	f, err = os.OpenFile(configFilePath, os.O_RDONLY, 0666)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	length, _ := f.Seek(0, 2)
	conf := make([]byte, length)
	f.Seek(0, 0)
	_, err = f.Read(conf)
	if err != nil {
		log.Fatal(err)
	}

	err = yaml.Unmarshal(conf, &config)
	if err != nil {
		log.Fatal(err)
	}
	return &config
}
