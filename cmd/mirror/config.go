package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/mirror/reconcile"
	"github.com/bobg/mirror/sink"
)

// config is the resolved configuration of a run or once subcommand.
// It can be read from a JSON file;
// flags and positional arguments override what the file says.
type config struct {
	Source     string `json:"source"`
	Replica    string `json:"replica"`
	IntervalMS int64  `json:"interval_ms"`
	LogDir     string `json:"log_dir"`
	LogFormat  string `json:"log_format"`
	LogLevel   string `json:"log_level"`

	OnError        string `json:"on_error"` // "continue" or "stop"
	ExitOnError    bool   `json:"exit_on_error"`
	RetryFailed    bool   `json:"retry_failed"`
	QuarantineSize int    `json:"quarantine_size"`
	Parallel       int    `json:"parallel"`

	Watch       bool   `json:"watch"`
	MetricsAddr string `json:"metrics_addr"`
	LockFile    string `json:"lock_file"`

	// History is a {"type": ..., "conn": ...} object
	// passed to history.Create.
	History map[string]interface{} `json:"history"`
}

func defaultConfig() *config {
	return &config{
		LogFormat:      "console",
		LogLevel:       "info",
		OnError:        "continue",
		RetryFailed:    true,
		QuarantineSize: 1000,
		Parallel:       1,
	}
}

// parseConfig parses the flags and arguments of a run or once subcommand.
// The positional form is: source replica interval-ms log-dir.
func parseConfig(fs *flag.FlagSet, args []string, needInterval bool) (*config, error) {
	var (
		configFile     = fs.String("config", "", "path to JSON config file")
		source         = fs.String("source", "", "source directory")
		replica        = fs.String("replica", "", "replica directory")
		interval       = fs.Int64("interval", 0, "milliseconds between passes")
		logDir         = fs.String("logdir", "", "directory for the daily log file")
		logFormat      = fs.String("logformat", "", "log format: console or json")
		logLevel       = fs.String("loglevel", "", "minimum log level")
		onError        = fs.String("on-error", "", "what a pass does after a subtree fails: continue or stop")
		exitOnError    = fs.Bool("exit-on-error", false, "exit after the first failed pass")
		retryFailed    = fs.Bool("retry-failed", true, "retry failed subtrees on the next pass (false: quarantine them until SIGHUP)")
		quarantineSize = fs.Int("quarantine-size", 0, "maximum number of quarantined subtrees")
		parallel       = fs.Int("parallel", 0, "number of sibling directories to reconcile at once")
		watch          = fs.Bool("watch", false, "start an extra pass when the source tree changes")
		metricsAddr    = fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
		lockFile       = fs.String("lockfile", "", "file to flock during each pass (default: beside the replica)")
		historyFile    = fs.String("history", "", "path to JSON history-store config file")
	)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parsing args")
	}

	conf := defaultConfig()
	if *configFile != "" {
		if err := conf.load(*configFile); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			conf.Source = *source
		case "replica":
			conf.Replica = *replica
		case "interval":
			conf.IntervalMS = *interval
		case "logdir":
			conf.LogDir = *logDir
		case "logformat":
			conf.LogFormat = *logFormat
		case "loglevel":
			conf.LogLevel = *logLevel
		case "on-error":
			conf.OnError = *onError
		case "exit-on-error":
			conf.ExitOnError = *exitOnError
		case "retry-failed":
			conf.RetryFailed = *retryFailed
		case "quarantine-size":
			conf.QuarantineSize = *quarantineSize
		case "parallel":
			conf.Parallel = *parallel
		case "watch":
			conf.Watch = *watch
		case "metrics-addr":
			conf.MetricsAddr = *metricsAddr
		case "lockfile":
			conf.LockFile = *lockFile
		case "history":
			if conf.History, err = readJSONMap(*historyFile); err != nil {
				err = errors.Wrap(err, "reading history config")
			}
		}
	})
	if err != nil {
		return nil, err
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 4:
		conf.Source, conf.Replica, conf.LogDir = rest[0], rest[1], rest[3]
		if conf.IntervalMS, err = strconv.ParseInt(rest[2], 10, 64); err != nil {
			return nil, errors.Errorf("File synchronization timer value %q is not in a valid format.", rest[2])
		}
	default:
		return nil, errors.Errorf("got %d arguments, want 4 (source replica interval-ms log-dir) or none", len(rest))
	}

	return conf, conf.validate(needInterval)
}

func (c *config) load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	return errors.Wrapf(dec.Decode(c), "decoding config file %s", filename)
}

func readJSONMap(filename string) (map[string]interface{}, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	var m map[string]interface{}
	dec := json.NewDecoder(f)
	dec.UseNumber()
	return m, errors.Wrapf(dec.Decode(&m), "decoding %s", filename)
}

// validate checks the configuration and makes its paths absolute.
func (c *config) validate(needInterval bool) error {
	var err error

	for _, p := range []struct {
		name string
		val  *string
		msg  string
	}{
		{"source", &c.Source, "Source directory path is invalid."},
		{"replica", &c.Replica, "Replica directory path is invalid."},
		{"log dir", &c.LogDir, "Log file path is invalid."},
	} {
		if *p.val == "" {
			return errors.Errorf("%s not set", p.name)
		}
		if *p.val, err = filepath.Abs(*p.val); err != nil {
			return errors.Wrapf(err, "resolving %s", p.name)
		}
		info, err := os.Stat(*p.val)
		if err != nil {
			return errors.Wrap(err, p.msg)
		}
		if !info.IsDir() {
			return errors.Errorf("%s %s is not a directory", p.msg, *p.val)
		}
	}

	if within(c.Replica, c.Source) || within(c.Source, c.Replica) {
		return errors.Errorf("source %s and replica %s must not contain one another", c.Source, c.Replica)
	}

	if needInterval && c.IntervalMS <= 0 {
		return errors.Errorf("File synchronization timer value %d is not positive.", c.IntervalMS)
	}

	switch c.OnError {
	case "continue", "stop":
	default:
		return errors.Errorf("unknown -on-error value %q", c.OnError)
	}

	if c.Parallel < 1 {
		return errors.Errorf("parallel value %d is less than 1", c.Parallel)
	}
	if !c.RetryFailed && c.QuarantineSize < 1 {
		return errors.Errorf("quarantine size %d is less than 1", c.QuarantineSize)
	}

	if c.LockFile == "" {
		c.LockFile = filepath.Join(filepath.Dir(c.Replica), "."+filepath.Base(c.Replica)+".mirror-lock")
	} else if c.LockFile, err = filepath.Abs(c.LockFile); err != nil {
		return errors.Wrap(err, "resolving lock file")
	}

	return nil
}

func (c *config) interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c *config) policy() reconcile.Policy {
	if c.OnError == "stop" {
		return reconcile.StopOnError
	}
	return reconcile.ContinueOnError
}

func (c *config) sinkConfig() sink.Config {
	return sink.Config{
		Dir:    c.LogDir,
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Stderr: true,
	}
}

// within tells whether dir is inside (or equal to) parent.
// Both must be absolute and clean.
func within(dir, parent string) bool {
	rel, err := filepath.Rel(parent, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
