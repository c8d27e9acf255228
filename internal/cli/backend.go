package cli

import (
	"log/slog"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/config"
	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/rebuild"
	"github.com/roach88/remoteq/internal/store"
	"github.com/roach88/remoteq/internal/types"
)

// backend is an executor over the configured dataset, plus the journal it
// writes to when one is open.
type backend struct {
	cfg     *config.Config
	elem    *types.Type
	exec    *endpoint.Executor[types.Record]
	journal *store.Store
}

// loadConfig reads the configuration file, mapping failures to command
// errors.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newBackend registers the configured record type, loads the dataset and
// builds an executor. A non-empty journalPath opens (or creates) a
// journal every request is appended to; the caller closes it.
func newBackend(cfg *config.Config, journalPath string, logger *slog.Logger) (*backend, error) {
	reg, elem, err := cfg.Registry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid record type", err)
	}

	var data []types.Record
	if cfg.Dataset != "" {
		data, err = config.LoadDataset[types.Record](cfg.Path(cfg.Dataset), elem)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load dataset", err)
		}
	}
	logger.Debug("dataset loaded", "record", elem.String(), "records", len(data))

	rb := rebuild.New(reg, catalog.Standard(),
		rebuild.WithStrict(cfg.Strict),
		rebuild.WithLogger(logger),
	)
	opts := []endpoint.Option{
		endpoint.WithLimits(cfg.EndpointLimits()),
		endpoint.WithLogger(logger),
	}

	b := &backend{cfg: cfg, elem: elem}
	if journalPath != "" {
		st, err := store.Open(journalPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		b.journal = st
		opts = append(opts, endpoint.WithJournal(st))
		logger.Debug("journal open", "path", journalPath)
	}

	b.exec, err = endpoint.NewExecutor(rb, elem, data, opts...)
	if err != nil {
		b.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create executor", err)
	}
	return b, nil
}

// Close closes the journal, if any.
func (b *backend) Close() error {
	if b.journal == nil {
		return nil
	}
	return b.journal.Close()
}
