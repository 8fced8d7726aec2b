package qrep

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewConfig(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := NewConfig()

		Convey("It should be runnable", func() {
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.Distances, ShouldResemble, []int{3, 4, 5})

			layout, err := cfg.BuildLayout()
			So(err, ShouldBeNil)
			So(layout, ShouldResemble, Dense{})
		})

		Convey("It should reject bad values before anything runs", func() {
			cfg.Distances = []int{3, 1}
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Distances = nil
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = NewConfig()
			cfg.ErrorRate = 1.5
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = NewConfig()
			cfg.Shots = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = NewConfig()
			cfg.Layout = "modular"
			cfg.Distances = []int{9}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("It should reject a distance listed twice", func() {
			cfg.Distances = []int{3, 4, 3}
			So(errors.Is(cfg.Validate(), ErrDuplicateDistance), ShouldBeTrue)
		})
	})
}

func TestConfigEnv(t *testing.T) {
	Convey("Given QREP_* variables", t, func() {
		env := map[string]string{
			"QREP_DISTANCES":     "2, 6",
			"QREP_TRIALS":        "20",
			"QREP_ERROR_RATE":    "0.01",
			"QREP_LAYOUT":        "modular",
			"QREP_BACKOFF":       "250ms",
			"QREP_SEED":          "99",
			"QREP_VERBOSE":       "true",
			"QREP_RATE_LIMIT":    "4",
			"QREP_RESET_TIMEOUT": "2s",
		}
		lookup := func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}

		cfg := NewConfig()
		So(cfg.applyEnv(lookup), ShouldBeNil)

		Convey("They should override the defaults", func() {
			So(cfg.Distances, ShouldResemble, []int{2, 6})
			So(cfg.Trials, ShouldEqual, 20)
			So(cfg.ErrorRate, ShouldEqual, 0.01)
			So(cfg.Layout, ShouldEqual, "modular")
			So(cfg.Backoff, ShouldEqual, 250*time.Millisecond)
			So(cfg.Seed, ShouldEqual, uint64(99))
			So(cfg.Verbose, ShouldBeTrue)
			So(cfg.RateLimit, ShouldEqual, 4)
			So(cfg.ResetTimeout, ShouldEqual, 2*time.Second)
			So(cfg.Shots, ShouldEqual, 1024)
		})

		Convey("Malformed values should be reported", func() {
			env["QREP_SHOTS"] = "lots"
			So(NewConfig().applyEnv(lookup), ShouldNotBeNil)
		})
	})

	Convey("Given a .env file", t, func() {
		path := filepath.Join(t.TempDir(), "qrep.env")
		So(os.WriteFile(path, []byte("QREP_TRIALS=7\nQREP_SHOTS=64\n"), 0o600), ShouldBeNil)

		Reset(func() {
			os.Unsetenv("QREP_TRIALS")
			os.Unsetenv("QREP_SHOTS")
		})

		cfg, err := LoadConfig(path)

		Convey("Its values should be loaded", func() {
			So(err, ShouldBeNil)
			So(cfg.Trials, ShouldEqual, 7)
			So(cfg.Shots, ShouldEqual, 64)
		})
	})

	Convey("Given a missing .env file", t, func() {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
		So(err, ShouldBeNil)
	})
}

func TestParseDistances(t *testing.T) {
	Convey("Given distance lists", t, func() {
		ds, err := ParseDistances("3,4, 5,")
		So(err, ShouldBeNil)
		So(ds, ShouldResemble, []int{3, 4, 5})

		_, err = ParseDistances("3,x")
		So(err, ShouldNotBeNil)
	})
}
