package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string
	AppName  string
	Debug    bool
	TestMode bool

	API struct {
		BaseURL string
		Token   string
		UserID  string // derived from Token when empty
		Timeout time.Duration
	}

	Search struct {
		Debounce time.Duration
	}

	Staging struct {
		MaxImageBytes    int64
		MaxDocumentBytes int64
		MaxImagePixels   int
		PreviewSize      int // thumbnail bounding box, in pixels
	}

	RollbarToken    string
	SendgridApiKey  string
	NotifyDecisions bool

	defaultFromEmail string
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from the environment.
// An optional dotenv file, config/.env.<env>, is loaded first when it exists.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Showcase")
	v.SetDefault("build", "develop")
	v.SetDefault("apiBaseURL", "http://localhost:8000/api")
	v.SetDefault("apiToken", "")
	v.SetDefault("apiUserID", "")
	v.SetDefault("apiTimeout", 30*time.Second)
	v.SetDefault("searchDebounce", 300*time.Millisecond)
	v.SetDefault("maxImageBytes", int64(5<<20))     // 5 MB
	v.SetDefault("maxDocumentBytes", int64(20<<20)) // 20 MB
	v.SetDefault("maxImagePixels", 40_000_000)
	v.SetDefault("previewSize", 320)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("notifyDecisions", false)
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		NotifyDecisions:  v.GetBool("notifyDecisions"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
	conf.API.BaseURL = strings.TrimRight(v.GetString("apiBaseURL"), "/")
	conf.API.Token = v.GetString("apiToken")
	conf.API.UserID = v.GetString("apiUserID")
	conf.API.Timeout = v.GetDuration("apiTimeout")
	conf.Search.Debounce = v.GetDuration("searchDebounce")
	conf.Staging.MaxImageBytes = v.GetInt64("maxImageBytes")
	conf.Staging.MaxDocumentBytes = v.GetInt64("maxDocumentBytes")
	conf.Staging.MaxImagePixels = v.GetInt("maxImagePixels")
	conf.Staging.PreviewSize = v.GetInt("previewSize")
	return conf, nil
}

func loadDotEnv(env string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	return nil
}
