package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment variable, e.g. BRIDGE_CHAIN_RPC_URL.
const EnvPrefix = "BRIDGE"

// Device backends.
const (
	BackendLedger   = "ledger"
	BackendEmulator = "emulator"
)

type EchoServer struct {
	Debug                         bool
	ListenAddress                 string
	EnableCORSMiddleware          bool
	EnableRecoverMiddleware       bool
	EnableRequestIDMiddleware     bool
	EnableTrailingSlashMiddleware bool
	EnableSecureMiddleware        bool
	EnableLoggerMiddleware        bool
	BodyLimit                     string
	AllowOrigins                  []string
	ShutdownTimeout               time.Duration
}

type Chain struct {
	ID         int64
	RPCURL     string
	RPCTimeout time.Duration
}

type Device struct {
	Backend        string
	Index          int
	DerivationPath string

	// emulator backend only
	Mnemonic         string `json:"-"`
	Passphrase       string `json:"-"`
	Keystore         string
	KeystorePassword string `json:"-"`
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	LogRequestBody     bool
	LogResponseBody    bool
	PrettyPrintConsole bool
}

type Management struct {
	ProbeTimeout time.Duration
}

type Server struct {
	Echo       EchoServer
	Chain      Chain
	Device     Device
	Logger     LoggerServer
	Management Management
}

// viper keys
const (
	keyEchoDebug           = "echo.debug"
	keyEchoListenAddress   = "echo.listen_address"
	keyEchoCORS            = "echo.enable_cors_middleware"
	keyEchoRecover         = "echo.enable_recover_middleware"
	keyEchoRequestID       = "echo.enable_request_id_middleware"
	keyEchoTrailingSlash   = "echo.enable_trailing_slash_middleware"
	keyEchoSecure          = "echo.enable_secure_middleware"
	keyEchoLogger          = "echo.enable_logger_middleware"
	keyEchoBodyLimit       = "echo.body_limit"
	keyEchoAllowOrigins    = "echo.allow_origins"
	keyEchoShutdownTimeout = "echo.shutdown_timeout"

	keyChainID         = "chain.id"
	keyChainRPCURL     = "chain.rpc_url"
	keyChainRPCTimeout = "chain.rpc_timeout"

	keyDeviceBackend          = "device.backend"
	keyDeviceIndex            = "device.index"
	keyDeviceDerivationPath   = "device.derivation_path"
	keyDeviceMnemonic         = "device.mnemonic"
	keyDevicePassphrase       = "device.passphrase"
	keyDeviceKeystore         = "device.keystore"
	keyDeviceKeystorePassword = "device.keystore_password"

	keyLoggerLevel              = "logger.level"
	keyLoggerRequestLevel       = "logger.request_level"
	keyLoggerLogRequestBody     = "logger.log_request_body"
	keyLoggerLogResponseBody    = "logger.log_response_body"
	keyLoggerPrettyPrintConsole = "logger.pretty_print_console"

	keyManagementProbeTimeout = "management.probe_timeout"
)

// NewViper returns a viper instance with all defaults set, reading BRIDGE_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyEchoDebug, false)
	v.SetDefault(keyEchoListenAddress, "127.0.0.1:8545")
	v.SetDefault(keyEchoCORS, true)
	v.SetDefault(keyEchoRecover, true)
	v.SetDefault(keyEchoRequestID, true)
	v.SetDefault(keyEchoTrailingSlash, true)
	v.SetDefault(keyEchoSecure, true)
	v.SetDefault(keyEchoLogger, true)
	v.SetDefault(keyEchoBodyLimit, "1M")
	v.SetDefault(keyEchoAllowOrigins, []string{"*"})
	v.SetDefault(keyEchoShutdownTimeout, 30*time.Second)

	v.SetDefault(keyChainID, 1)
	v.SetDefault(keyChainRPCURL, "http://127.0.0.1:8546")
	v.SetDefault(keyChainRPCTimeout, 15*time.Second)

	v.SetDefault(keyDeviceBackend, BackendLedger)
	v.SetDefault(keyDeviceIndex, 0)
	v.SetDefault(keyDeviceDerivationPath, "m/44'/60'/0'/0/0")
	v.SetDefault(keyDeviceMnemonic, "")
	v.SetDefault(keyDevicePassphrase, "")
	v.SetDefault(keyDeviceKeystore, "")
	v.SetDefault(keyDeviceKeystorePassword, "")

	v.SetDefault(keyLoggerLevel, zerolog.InfoLevel.String())
	v.SetDefault(keyLoggerRequestLevel, zerolog.DebugLevel.String())
	v.SetDefault(keyLoggerLogRequestBody, false)
	v.SetDefault(keyLoggerLogResponseBody, false)
	v.SetDefault(keyLoggerPrettyPrintConsole, true)

	v.SetDefault(keyManagementProbeTimeout, 2*time.Second)

	return v
}

// Load reads the configuration from defaults, the optional config file and the environment,
// in increasing order of precedence. A .env file in the working directory is loaded first
// without overriding variables that are already set.
func Load(configFile string) (Server, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, errors.Wrap(err, "failed to load .env")
	}

	v := NewViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	return FromViper(v)
}

// FromViper builds the configuration from v.
func FromViper(v *viper.Viper) (Server, error) {
	level, err := zerolog.ParseLevel(v.GetString(keyLoggerLevel))
	if err != nil {
		return Server{}, errors.Wrap(err, "invalid logger level")
	}
	requestLevel, err := zerolog.ParseLevel(v.GetString(keyLoggerRequestLevel))
	if err != nil {
		return Server{}, errors.Wrap(err, "invalid logger request level")
	}

	return Server{
		Echo: EchoServer{
			Debug:                         v.GetBool(keyEchoDebug),
			ListenAddress:                 v.GetString(keyEchoListenAddress),
			EnableCORSMiddleware:          v.GetBool(keyEchoCORS),
			EnableRecoverMiddleware:       v.GetBool(keyEchoRecover),
			EnableRequestIDMiddleware:     v.GetBool(keyEchoRequestID),
			EnableTrailingSlashMiddleware: v.GetBool(keyEchoTrailingSlash),
			EnableSecureMiddleware:        v.GetBool(keyEchoSecure),
			EnableLoggerMiddleware:        v.GetBool(keyEchoLogger),
			BodyLimit:                     v.GetString(keyEchoBodyLimit),
			AllowOrigins:                  v.GetStringSlice(keyEchoAllowOrigins),
			ShutdownTimeout:               v.GetDuration(keyEchoShutdownTimeout),
		},
		Chain: Chain{
			ID:         v.GetInt64(keyChainID),
			RPCURL:     v.GetString(keyChainRPCURL),
			RPCTimeout: v.GetDuration(keyChainRPCTimeout),
		},
		Device: Device{
			Backend:          strings.ToLower(v.GetString(keyDeviceBackend)),
			Index:            v.GetInt(keyDeviceIndex),
			DerivationPath:   v.GetString(keyDeviceDerivationPath),
			Mnemonic:         v.GetString(keyDeviceMnemonic),
			Passphrase:       v.GetString(keyDevicePassphrase),
			Keystore:         v.GetString(keyDeviceKeystore),
			KeystorePassword: v.GetString(keyDeviceKeystorePassword),
		},
		Logger: LoggerServer{
			Level:              level,
			RequestLevel:       requestLevel,
			LogRequestBody:     v.GetBool(keyLoggerLogRequestBody),
			LogResponseBody:    v.GetBool(keyLoggerLogResponseBody),
			PrettyPrintConsole: v.GetBool(keyLoggerPrettyPrintConsole),
		},
		Management: Management{
			ProbeTimeout: v.GetDuration(keyManagementProbeTimeout),
		},
	}, nil
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined above.
func DefaultServiceConfigFromEnv() Server {
	cfg, err := Load("")
	if err != nil {
		log.Panic().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// Validate checks the settings required to serve requests.
func (s Server) Validate() error {
	if s.Chain.ID <= 0 {
		return errors.New("chain id must be positive")
	}
	if s.Chain.RPCURL == "" {
		return errors.New("chain rpc url is required")
	}

	switch s.Device.Backend {
	case BackendLedger:
		if s.Device.Index < 0 {
			return errors.New("device index must not be negative")
		}
	case BackendEmulator:
		if s.Device.Mnemonic == "" && s.Device.Keystore == "" {
			return errors.New("emulator backend requires a mnemonic or a keystore")
		}
	default:
		return errors.Errorf("unknown device backend %q", s.Device.Backend)
	}

	return nil
}
