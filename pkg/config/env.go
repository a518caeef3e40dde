package config

import (
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/ncw/directio"
)

// Environment prefix for all configuration variables.
const EnvPrefix = "EXTHASH"

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Size of the fixed bucket header: count, trie value, trie bit length.
const bucketHeaderSize = 12

// Config holds the tunables of a database folder and the indexes inside it.
type Config struct {
	Environment  string `default:"dev"`
	DataDir      string `default:"data/" split_words:"true"`
	BlockSize    int    `default:"4096" split_words:"true"`
	BufferFrames int    `default:"32" split_words:"true"`
	KeyLen       int    `default:"8" split_words:"true"`
	ValueLen     int    `default:"8" split_words:"true"`
	Hash         string `default:"fnv"`
	Checking     bool   `default:"false"`
	Logging      bool   `default:"false"`
	DirectIO     bool   `default:"false" envconfig:"DIRECT_IO"`
	MaxBitLen    int    `default:"31" split_words:"true"`
}

// Default returns the configuration used when nothing is set in the environment.
func Default() Config {
	return Config{
		Environment:  EnvDev,
		DataDir:      "data/",
		BlockSize:    DefaultBlockSize,
		BufferFrames: DefaultBufferFrames,
		KeyLen:       DefaultKeyLen,
		ValueLen:     DefaultValueLen,
		Hash:         "fnv",
		MaxBitLen:    MaxTrieBits,
	}
}

// Load reads an optional .env file at envFile (skipped if empty or missing),
// then the EXTHASH_* environment, and validates the result.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	} else {
		// A missing default .env is not an error.
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process env")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

// Validate checks the configuration for values the index cannot work with.
func (c Config) Validate() error {
	if c.Environment != EnvDev && c.Environment != EnvProd {
		return errors.New("environment must be either dev or prod")
	}
	if c.KeyLen <= 0 || c.ValueLen < 0 {
		return errors.Errorf("invalid record layout: key %d, value %d", c.KeyLen, c.ValueLen)
	}
	if c.BlockSize < bucketHeaderSize+2*(c.KeyLen+c.ValueLen) {
		return errors.Errorf("block size %d cannot hold two records of %d bytes", c.BlockSize, c.KeyLen+c.ValueLen)
	}
	if c.DirectIO && c.BlockSize%directio.BlockSize != 0 {
		return errors.Errorf("block size %d must be a multiple of %d with direct io", c.BlockSize, directio.BlockSize)
	}
	if c.BufferFrames < 2 {
		return errors.Errorf("need at least 2 buffer frames, got %d", c.BufferFrames)
	}
	if c.MaxBitLen < 1 || c.MaxBitLen > MaxTrieBits {
		return errors.Errorf("max bit length %d out of range [1, %d]", c.MaxBitLen, MaxTrieBits)
	}
	switch c.Hash {
	case "fnv", "xxhash", "murmur3", "bytes4":
	default:
		return errors.Errorf("unknown hash function %q", c.Hash)
	}
	return nil
}
