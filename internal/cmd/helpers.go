package cmd

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/forceupdate/internal/config"
	"github.com/adamancini/forceupdate/internal/logging"
	"github.com/adamancini/forceupdate/internal/output"
	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// loadForcefile locates and loads the Forcefile selected by the global flags
// and applies its log settings.
func loadForcefile() (*config.Forcefile, error) {
	path, err := config.FindForcefile(configPath)
	if err != nil {
		return nil, err
	}

	forcefile, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("using Forcefile: %s", path)

	if err := applyLogConfig(forcefile.Log); err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return forcefile, nil
}

// applyLogConfig re-initialises logging when the Forcefile sets something the
// flags did not.
func applyLogConfig(cfg config.LogConfig) error {
	if cfg.Level == "" && cfg.File == "" {
		return nil
	}
	return logging.InitLog(effectiveLogLevel(cfg.Level), effectiveLogFile(cfg.File))
}

// newController builds a controller for the Forcefile. A non-empty installed
// version overrides the one in the file.
func newController(forcefile *config.Forcefile, installed string) (*forceupdate.Controller, error) {
	cfg, err := forcefile.ControllerConfig()
	if err != nil {
		return nil, err
	}
	if installed != "" {
		cfg.InstalledVersion = installed
	}

	fetcher := forceupdate.NewHTTPFetcher()
	fetcher.UserAgent = "forceupdate/" + buildVersion

	controller, err := forceupdate.New(cfg,
		forceupdate.WithFetcher(fetcher),
		forceupdate.WithLogger(log.WithField("component", "forceupdate")),
	)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"manifest": cfg.ManifestURL,
		"lookup":   controller.LookupURL(),
	}).Debug("controller ready")
	return controller, nil
}

// newWriter returns an output writer for the --output flag.
func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}
