package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/klepsydra/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad_Defaults(t *testing.T) {
	Convey("Given no file and no environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.InspectionMS, ShouldEqual, 15000)
			So(cfg.HoldToStartMS, ShouldEqual, 300)
			So(cfg.AverageWindows, ShouldResemble, []int{5, 12, 50, 100, 1000})
			So(cfg.MeanOfAverageWindows, ShouldResemble, []int{3, 12})
			So(cfg.StoreBackend, ShouldEqual, config.BackendMemory)
		})
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	Convey("Given KLEPSYDRA_ environment variables", t, func() {
		t.Setenv("KLEPSYDRA_ADDR", ":8080")
		t.Setenv("KLEPSYDRA_INSPECTION_MS", "0")
		t.Setenv("KLEPSYDRA_HOLD_TO_START_MS", "550")
		t.Setenv("KLEPSYDRA_LOG_LEVEL", "debug")

		cfg, err := config.Load(context.Background())

		Convey("Then env values take precedence over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.InspectionMS, ShouldEqual, 0)
			So(cfg.HoldToStartMS, ShouldEqual, 550)
			So(cfg.LogLevel, ShouldEqual, "debug")
		})
	})
}

func TestLoad_File(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "klepsydra.yaml")
		yaml := "addr: \":7070\"\ninspection_ms: 12000\nstore_backend: sqlite\nsqlite_path: " + filepath.Join(dir, "history.db") + "\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
		t.Setenv("KLEPSYDRA_CONFIG", path)

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then file values layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.InspectionMS, ShouldEqual, 12000)
				So(cfg.StoreBackend, ShouldEqual, config.BackendSQLite)
			})
		})

		Convey("When env also overrides the file", func() {
			t.Setenv("KLEPSYDRA_ADDR", ":6060")
			cfg, err := config.Load(context.Background())

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
		})
	})
}

func TestLoad_Validation(t *testing.T) {
	Convey("Given invalid configuration values", t, func() {
		Convey("When addr is empty", func() {
			t.Setenv("KLEPSYDRA_ADDR", "")
			cfg, err := config.Load(context.Background())
			So(err, ShouldNotBeNil)
			So(cfg, ShouldBeNil)
		})

		Convey("When inspection_ms is negative", func() {
			t.Setenv("KLEPSYDRA_INSPECTION_MS", "-1")
			_, err := config.Load(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("When the store backend is unknown", func() {
			t.Setenv("KLEPSYDRA_STORE_BACKEND", "etcd")
			_, err := config.Load(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
