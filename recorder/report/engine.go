// Package report decides which social posts and alerts a vehicle's history warrants.
package report

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/weather"
)

type Kind string

const (
	RoadTrip        Kind = "road_trip"
	DayOff          Kind = "day_off"
	Drove           Kind = "drove"
	DroveEfficiency Kind = "drove_efficiency"
	Milestone       Kind = "milestone"
	FirmwareNew     Kind = "firmware_new"
	FirmwareSame    Kind = "firmware_same"
	NotPluggedIn    Kind = "not_plugged_in"
	MailTest        Kind = "mail_test"
)

// Message is a post or an email the caller should dispatch.
type Message struct {
	Kind    Kind
	Text    string
	Subject string
	// Image is an optional picture to attach to a post.
	Image      string
	Miles      float64
	Efficiency float64
}

// Profile holds the vehicle-specific wording of the messages.
type Profile struct {
	Brand         string
	Model         string
	Mention       string
	MilestoneTags string
	OwnedSince    time.Time
	Signature     string
}

// ProfileFromConfig builds a Profile from a vehicle configuration.
func ProfileFromConfig(conf common.Vehicle) Profile {
	ownedSince, err := time.ParseInLocation("2006-01-02", conf.OwnedSince, time.Local)
	if err != nil {
		glog.Warningf("Invalid ownership date %q: %v", conf.OwnedSince, err)
	}
	return Profile{
		Brand:         conf.Brand,
		Model:         conf.Model,
		Mention:       conf.Mention,
		MilestoneTags: conf.MilestoneTags,
		OwnedSince:    ownedSince,
		Signature:     conf.Signature,
	}
}

type Config struct {
	Profile       Profile
	Limits        common.Limits
	PicturesPath  string
	VersionImages string
}

type WeatherSource = weather.Source

type Engine struct {
	conf    Config
	weather WeatherSource
	clock   clock.Clock
	rand    *rand.Rand
}

func NewEngine(conf Config, ws WeatherSource, c clock.Clock) *Engine {
	return &Engine{
		conf:    conf,
		weather: ws,
		clock:   c,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// sentence joins the non-empty parts with single spaces.
func sentence(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func (e *Engine) pick(choices []string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[e.rand.Intn(len(choices))]
}

func (e *Engine) picture() string {
	return PickPicture(e.rand, e.conf.PicturesPath)
}

// PickPicture returns the absolute path of a random file in dir, or "" when there is none.
func PickPicture(r *rand.Rand, dir string) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		glog.V(1).Infof("No pictures available in %s: %v", dir, err)
		return ""
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return ""
	}
	pic := files[r.Intn(len(files))]
	if abs, err := filepath.Abs(pic); err == nil {
		return abs
	}
	return pic
}

func (e *Engine) versionImage() string {
	if e.conf.VersionImages == "" {
		return ""
	}
	matches, err := filepath.Glob(e.conf.VersionImages)
	if err != nil {
		glog.Warningf("Bad version image pattern %q: %v", e.conf.VersionImages, err)
		return ""
	}
	return e.pick(matches)
}
