package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gookit/validate"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Configuration struct {
	// DebugMode disables posts, emails and state writes, and makes failures surface instead of
	// being mailed.
	DebugMode bool
	DryRun    bool

	Tesla  Vehicle
	Rivian Vehicle
	Solar  Solar

	Mail           MailConfig
	Pushover       PushoverConfig
	Mastodon       MastodonConfig
	Weather        WeatherConfig
	InfluxDbConfig InfluxDbConfig
	Retry          RetryConfig
}

// Vehicle configures one vehicle tool instance.
type Vehicle struct {
	Name          string `validate:"required"`
	Vin           string
	VehicleId     string
	Brand         string `validate:"required"`
	Model         string `validate:"required"`
	Mention       string
	MilestoneTags string
	OwnedSince    string `validate:"required"`
	Email         string
	Signature     string
	DataFile      string `validate:"required"`
	LockFile      string `validate:"required"`
	DumpDir       string
	CompressDumps bool
	PicturesPath  string
	VersionImages string
	SleepLogFile  string
	ReportSince   string
	Limits        Limits
	TeslaAuth     TeslaAuth
	RivianAuth    RivianAuth
}

// Limits are the data-quality bounds applied to daily reports.
type Limits struct {
	MaxDailyMiles float64
	RoadTripMiles float64
	MinEfficiency float64
	MaxEfficiency float64
}

type TeslaAuth struct {
	ClientId     string
	ClientSecret string
	Username     string
	Password     string
}

type RivianAuth struct {
	Endpoint         string
	AccessToken      string
	UserSessionToken string
	AppSessionToken  string
	CsrfToken        string
}

type Solar struct {
	Name          string `validate:"required"`
	Email         string
	Referral      string
	Signature     string
	DataFile      string `validate:"required"`
	LockFile      string `validate:"required"`
	PicturesPath  string
	HistoricalCsv string
	BadDays       []string
}

type MailConfig struct {
	SmtpServer string
	From       string
	// Transport selects how alerts and emails are delivered: "smtp" or "pushover".
	Transport string
}

type PushoverConfig struct {
	Token string
	User  string
}

type MastodonConfig struct {
	Server string
	Token  string
}

type WeatherConfig struct {
	BaseUrl   string
	ApiKey    string
	Latitude  float64
	Longitude float64
	Timeout   time.Duration
}

type InfluxDbConfig struct {
	Enabled  bool
	Address  string
	Username string
	Password string
	Database string
}

type RetryConfig struct {
	Lock  RetryPolicy
	Fetch RetryPolicy
	Post  RetryPolicy
	Run   RetryPolicy
}

// DefaultConfigPath is used when no --config flag is given.
func DefaultConfigPath() string {
	return os.Getenv("HOME") + "/.evtools_conf.json"
}

// envBindings keeps the environment variable names the tools have always honored.
var envBindings = map[string][]string{
	"debugmode":                {"EVTOOLS_DEBUG_MODE", "DEBUG_MODE", "RIVIAN_DEBUG_MODE"},
	"tesla.datafile":           {"EVTOOLS_TESLA_DATAFILE", "TESLA_DATA_FILE"},
	"tesla.name":               {"EVTOOLS_TESLA_NAME", "TESLA_CAR_NAME"},
	"tesla.picturespath":       {"EVTOOLS_TESLA_PICTURESPATH", "TESLA_PICTURES_PATH"},
	"tesla.email":              {"EVTOOLS_TESLA_EMAIL", "TESLA_EMAIL"},
	"tesla.teslaauth.username": {"EVTOOLS_TESLA_USERNAME", "TESLA_EMAIL"},
	"tesla.teslaauth.password": {"EVTOOLS_TESLA_PASSWORD", "TESLA_PASSWORD"},
	"rivian.datafile":          {"EVTOOLS_RIVIAN_DATAFILE", "RIVIAN_DATA_FILE"},
	"rivian.vehicleid":         {"EVTOOLS_RIVIAN_VEHICLEID", "RIVIAN_VEHICLE_ID"},
	"rivian.picturespath":      {"EVTOOLS_RIVIAN_PICTURESPATH", "RIVIAN_PICTURES_PATH"},
	"rivian.sleeplogfile":      {"EVTOOLS_RIVIAN_SLEEPLOGFILE", "RIVIAN_SLEEP_LOG_FILE"},
	"rivian.email":             {"EVTOOLS_RIVIAN_EMAIL", "RIVIAN_EMAIL"},
	"solar.email":              {"EVTOOLS_SOLAR_EMAIL", "SOLARCITY_USER"},
	"solar.referral":           {"EVTOOLS_SOLAR_REFERRAL", "SOLARCITY_REFERRAL"},
	"mail.smtpserver":          {"EVTOOLS_MAIL_SMTPSERVER", "TL_SMTP_SERVER"},
	"mail.from":                {"EVTOOLS_MAIL_FROM", "TL_MAILFROM"},
	"weather.apikey":           {"EVTOOLS_WEATHER_APIKEY", "DARKSKY_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debugmode", false)
	v.SetDefault("dryrun", false)

	limits := map[string]interface{}{
		"maxdailymiles": 2000.0,
		"roadtripmiles": 200.0,
		"minefficiency": 200.0,
		"maxefficiency": 700.0,
	}
	v.SetDefault("tesla", map[string]interface{}{
		"name":          "",
		"vin":           "",
		"brand":         "Tesla",
		"model":         "Model S 75D",
		"mention":       "@Teslamotors",
		"milestonetags": "#Tesla @TeslaMotors @Teslarati",
		"ownedsince":    "2014-04-21",
		"email":         "",
		"signature":     "Rob",
		"datafile":      "tesla.json",
		"lockfile":      "/tmp/tesla.lock",
		"dumpdir":       "tesla_state_dumps",
		"compressdumps": false,
		"picturespath":  "images/favorites",
		"versionimages": "images/versions/*-watermark*",
		"sleeplogfile":  "tesla_sleep_log.csv",
		"reportsince":   "20151030",
		"limits":        limits,
		"teslaauth": map[string]interface{}{
			"clientid":     "",
			"clientsecret": "",
			"username":     "",
			"password":     "",
		},
	})
	v.SetDefault("rivian", map[string]interface{}{
		"name":          "R1T",
		"vehicleid":     "",
		"brand":         "Rivian",
		"model":         "2023 Rivian R1T",
		"mention":       "@Rivian",
		"milestonetags": "#Rivian #R1T @Rivian @TezLabApp",
		"ownedsince":    "2023-03-16",
		"email":         "",
		"signature":     "Rob",
		"datafile":      "rivian.json",
		"lockfile":      "/tmp/rivian.lock",
		"dumpdir":       "rivian_state_dumps",
		"compressdumps": false,
		"picturespath":  "images/rivian",
		"versionimages": "images/rivian_versions/*",
		"sleeplogfile":  "rivian_sleep_log.csv",
		"reportsince":   "",
		"limits":        limits,
		"rivianauth": map[string]interface{}{
			"endpoint":         "https://rivian.com/api/gql/gateway/graphql",
			"accesstoken":      "",
			"usersessiontoken": "",
			"appsessiontoken":  "",
			"csrftoken":        "",
		},
	})
	v.SetDefault("solar", map[string]interface{}{
		"name":          "@Tesla Solar",
		"email":         "",
		"referral":      "",
		"signature":     "Rob",
		"datafile":      "solarcity.json",
		"lockfile":      "/tmp/solarcity.lock",
		"picturespath":  "images/solar",
		"historicalcsv": "historical.csv",
		"baddays":       []string{"20150610"},
	})
	v.SetDefault("mail.smtpserver", "127.0.0.1:25")
	v.SetDefault("mail.from", "nobody@example.com")
	v.SetDefault("mail.transport", "smtp")
	v.SetDefault("pushover.token", "")
	v.SetDefault("pushover.user", "")
	v.SetDefault("mastodon.server", "")
	v.SetDefault("mastodon.token", "")
	v.SetDefault("weather.baseurl", "https://api.pirateweather.net")
	v.SetDefault("weather.apikey", "")
	v.SetDefault("weather.latitude", 40.689249)
	v.SetDefault("weather.longitude", -74.0445)
	v.SetDefault("weather.timeout", 30*time.Second)
	v.SetDefault("influxdbconfig.enabled", false)
	v.SetDefault("influxdbconfig.address", "http://localhost:8086")
	v.SetDefault("influxdbconfig.database", "evtools")

	v.SetDefault("retry.lock", map[string]interface{}{"attempts": 10, "delay": 30 * time.Second})
	v.SetDefault("retry.fetch", map[string]interface{}{"attempts": 3, "delay": 30 * time.Second})
	v.SetDefault("retry.post", map[string]interface{}{"attempts": 2, "delay": 7500 * time.Millisecond, "exponential": true, "jitter": 0.33})
	v.SetDefault("retry.run", map[string]interface{}{"attempts": 3, "delay": 10 * time.Second})
}

// LoadConfig reads the JSON configuration at path, then applies environment overrides. A missing
// file is not an error; the defaults and the environment are used instead.
func LoadConfig(path string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVTOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Configuration{}, errors.Wrapf(err, "cannot bind environment for %s", key)
		}
	}

	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Configuration{}, errors.Wrapf(err, "cannot read config %s", path)
		}
	} else {
		glog.Warningf("Config file %s not found, using defaults and environment.", path)
	}

	conf := Configuration{}
	if err := v.Unmarshal(&conf); err != nil {
		return Configuration{}, errors.Wrap(err, "unable to decode into config struct")
	}
	if conf.DebugMode {
		conf.DryRun = true
	}
	return conf, nil
}

// Validate checks the settings a vehicle tool cannot run without.
func (c *Vehicle) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return errors.Wrapf(v.Errors, "invalid %s configuration", c.Brand)
	}
	if _, err := time.ParseInLocation("2006-01-02", c.OwnedSince, time.Local); err != nil {
		return errors.Wrapf(err, "invalid %s ownedsince date", c.Brand)
	}
	return c.Limits.Validate()
}

func (l *Limits) Validate() error {
	if l.MaxDailyMiles <= 0 {
		return errors.Errorf("maxdailymiles must be positive, got %v", l.MaxDailyMiles)
	}
	if l.RoadTripMiles <= 0 || l.RoadTripMiles > l.MaxDailyMiles {
		return errors.Errorf("roadtripmiles must be in (0, %v], got %v", l.MaxDailyMiles, l.RoadTripMiles)
	}
	if l.MinEfficiency >= l.MaxEfficiency {
		return errors.Errorf("minefficiency %v must be below maxefficiency %v", l.MinEfficiency, l.MaxEfficiency)
	}
	return nil
}

func (c *Solar) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return errors.Wrap(v.Errors, "invalid solar configuration")
	}
	return nil
}

// WriteRedacted prints the configuration with credentials masked.
func (c *Configuration) WriteRedacted(w io.Writer) {
	redacted := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "<redacted>"
		}
	}
	mask(&redacted.Tesla.TeslaAuth.ClientSecret)
	mask(&redacted.Tesla.TeslaAuth.Password)
	mask(&redacted.Rivian.RivianAuth.AccessToken)
	mask(&redacted.Rivian.RivianAuth.UserSessionToken)
	mask(&redacted.Rivian.RivianAuth.AppSessionToken)
	mask(&redacted.Rivian.RivianAuth.CsrfToken)
	mask(&redacted.Pushover.Token)
	mask(&redacted.Mastodon.Token)
	mask(&redacted.Weather.ApiKey)
	mask(&redacted.InfluxDbConfig.Password)
	fmt.Fprintf(w, "%+v\n", redacted)
}
