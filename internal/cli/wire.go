package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/debemdeboas/kable/internal/choices"
	"github.com/debemdeboas/kable/internal/config"
	"github.com/debemdeboas/kable/internal/db"
	"github.com/debemdeboas/kable/internal/formfile"
	"github.com/debemdeboas/kable/internal/render"
	"github.com/debemdeboas/kable/internal/store"
	"github.com/debemdeboas/kable/internal/store/rest"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/util/compression"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg *config.Config

	handle       store.Handle
	local        *store.SQLiteRecordStore // nil unless the sqlite backend is used
	orchestrator *submission.Orchestrator
	choices      *choices.Provider
	renderer     render.Renderer

	closers []func() error
}

// newApp builds the stores and services. progress may be nil.
func newApp(ctx context.Context, cfg *config.Config, progress func(submission.Event)) (*app, error) {
	a := &app{cfg: cfg}

	renderer, err := render.ParseRenderer(cfg.Submission.InfoRenderer)
	if err != nil {
		return nil, err
	}
	a.renderer = renderer

	var (
		records store.RecordStore
		remote  *rest.Client
	)
	switch cfg.Store.Backend {
	case "sqlite":
		sqlite := db.NewSQLite(cfg.Store.SQLitePath)
		if err := sqlite.InitDB(); err != nil {
			return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
		}
		a.closers = append(a.closers, sqlite.Close)

		compressor, err := compression.New(cfg.Store.Compression)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.local = store.NewSQLiteRecordStore(sqlite, compressor)
		records = a.local
	case "rest":
		remote, err = rest.New(rest.Config{
			SiteURL:           cfg.Site.URL,
			Token:             cfg.Rest.Token,
			RequestsPerSecond: cfg.Rest.RequestsPerSecond,
			Burst:             cfg.Rest.Burst,
			Timeout:           cfg.Rest.Timeout,
		})
		if err != nil {
			return nil, err
		}
		records = remote
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}

	var assets store.AssetStore
	switch cfg.Assets.Backend {
	case "fs":
		assets = store.NewFSAssetStore(cfg.Assets.FSRoot)
	case "s3":
		s3, err := store.NewS3AssetStore(ctx, store.S3Config{
			AccessKeyID:     cfg.Assets.S3.AccessKeyID,
			AccessKeySecret: cfg.Assets.S3.AccessKeySecret,
			BaseEndpoint:    cfg.Assets.S3.Endpoint,
			Region:          cfg.Assets.S3.Region,
			Bucket:          cfg.Assets.S3.Bucket,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		assets = s3
	case "store":
		if remote == nil {
			a.Close()
			return nil, fmt.Errorf("assets backend %q requires the rest store backend", cfg.Assets.Backend)
		}
		assets = remote
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported assets backend %q", cfg.Assets.Backend)
	}

	a.handle = store.Compose(records, assets)

	a.orchestrator, err = submission.New(a.handle, submission.Options{
		SiteURL:          cfg.Site.URL,
		SubmissionsList:  cfg.Lists.Submissions,
		ContentList:      cfg.Lists.Content,
		AssetLocation:    cfg.Lists.Assets,
		Fields:           fields(cfg.Fields),
		IdempotencyField: cfg.Submission.IdempotencyField,
		Progress:         progress,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.choices = choices.New(a.handle, cfg.Lists.Submissions, cfg.Choices.Field, cfg.Choices.CacheTTL)
	return a, nil
}

func fields(f config.FieldsConfig) submission.Fields {
	return submission.Fields{
		Title:         f.Title,
		GroupName:     f.GroupName,
		PublishedDate: f.PublishedDate,
		Submission:    f.Submission,
		Section:       f.Section,
		Info:          f.Info,
		Layout:        f.Layout,
		SortOrder:     f.SortOrder,
		Image:         f.Image,
	}
}

func (a *app) documentOptions(images formfile.ImageResolver) formfile.Options {
	return formfile.Options{
		Images:         images,
		Renderer:       a.renderer,
		HighlightStyle: a.cfg.Submission.HighlightStyle,
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
