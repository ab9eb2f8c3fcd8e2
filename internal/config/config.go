// Package config loads process settings from the environment and feed
// definitions from CUE files.
package config

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
)

//go:embed schema.cue
var schemaCUE string

// Env holds the settings read from FEEDSYNC_* environment variables.
type Env struct {
	DB           string        `env:"FEEDSYNC_DB" envDefault:"feedsync.db"`
	LogLevel     slog.Level    `env:"FEEDSYNC_LOG_LEVEL" envDefault:"info"`
	FetchTimeout time.Duration `env:"FEEDSYNC_FETCH_TIMEOUT" envDefault:"20s"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	return LoadEnvFrom(nil)
}

// LoadEnvFrom reads Env from the given variables. A nil map reads the
// process environment.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	if e.FetchTimeout <= 0 {
		return Env{}, fmt.Errorf("FEEDSYNC_FETCH_TIMEOUT must be positive, got %s", e.FetchTimeout)
	}
	return e, nil
}

// Gateway kinds a feed definition may name.
const (
	KindRSS      = "rss"
	KindTimeline = "timeline"
)

// FeedDef is one compiled entry of the feeds struct.
type FeedDef struct {
	Name     string `json:"-"`
	Domain   string `json:"domain"`
	Kind     string `json:"kind"`
	URL      string `json:"url,omitempty"`
	Refresh  string `json:"refresh"`
	PageSize int    `json:"pageSize"`

	// Seed and Publish drive the simulated remote of timeline feeds.
	Seed    []string `json:"seed,omitempty"`
	Publish string   `json:"publish,omitempty"`
}

// Params returns the gateway parameters for the feed. RSS feeds are
// addressed by URL, simulated timelines by name.
func (d FeedDef) Params() feed.Params {
	p := feed.Params{Domain: d.Domain, Timeline: d.Name, Limit: d.PageSize}
	if d.Kind == KindRSS {
		p.Timeline = d.URL
	}
	return p
}

// Schedule parses the refresh expression.
func (d FeedDef) Schedule() (cron.Schedule, error) {
	return cron.ParseStandard(d.Refresh)
}

// PublishSchedule parses the publish expression. ok is false when the feed
// does not publish.
func (d FeedDef) PublishSchedule() (sched cron.Schedule, ok bool, err error) {
	if d.Publish == "" {
		return nil, false, nil
	}
	sched, err = cron.ParseStandard(d.Publish)
	return sched, err == nil, err
}

// LoadError is a feed definition error, positioned when CUE knows where.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFeeds compiles the CUE file at path against the feed schema.
func LoadFeeds(path string) ([]FeedDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Field: "file", Message: err.Error()}
	}
	return ParseFeeds(path, data)
}

// ParseFeeds compiles CUE source. filename is only used for positions.
// Definitions are returned sorted by name.
func ParseFeeds(filename string, src []byte) ([]FeedDef, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, formatCUEError(err, filename, cue.Value{})
	}
	v := schema.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, filename, file)
	}

	feedsVal := v.LookupPath(cue.ParsePath("feeds"))
	if !feedsVal.Exists() {
		return nil, &LoadError{Field: "feeds", Message: "no feeds defined", Pos: v.Pos()}
	}
	iter, err := feedsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err, filename, file)
	}

	var defs []FeedDef
	for iter.Next() {
		def, err := compileFeed(iter.Label(), iter.Value(), filename, file)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &LoadError{Field: "feeds", Message: "no feeds defined", Pos: feedsVal.Pos()}
	}
	slices.SortFunc(defs, func(a, b FeedDef) int { return cmp.Compare(a.Name, b.Name) })
	return defs, nil
}

func compileFeed(name string, v cue.Value, filename string, file cue.Value) (FeedDef, error) {
	var def FeedDef
	if err := v.Decode(&def); err != nil {
		return FeedDef{}, formatCUEError(err, filename, file)
	}
	def.Name = name

	field := "feeds." + name
	if def.Kind == KindRSS && def.URL == "" {
		return FeedDef{}, &LoadError{Field: field + ".url", Message: "rss feeds need a url", Pos: v.Pos()}
	}
	if _, err := def.Schedule(); err != nil {
		pos := v.Pos()
		if r := v.LookupPath(cue.ParsePath("refresh")); r.Exists() && r.Pos().IsValid() {
			pos = r.Pos()
		}
		return FeedDef{}, &LoadError{Field: field + ".refresh", Message: err.Error(), Pos: pos}
	}
	if def.Kind != KindTimeline && (len(def.Seed) > 0 || def.Publish != "") {
		return FeedDef{}, &LoadError{Field: field + ".seed", Message: "only timeline feeds take seed or publish", Pos: v.Pos()}
	}
	if _, _, err := def.PublishSchedule(); err != nil {
		pos := v.Pos()
		if p := v.LookupPath(cue.ParsePath("publish")); p.Exists() && p.Pos().IsValid() {
			pos = p.Pos()
		}
		return FeedDef{}, &LoadError{Field: field + ".publish", Message: err.Error(), Pos: pos}
	}
	return def, nil
}

// formatCUEError keeps the first CUE error with a position in filename
// when one can be found. file is the compiled, un-unified source; it may be
// the zero Value.
func formatCUEError(err error, filename string, file cue.Value) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	return &LoadError{Field: "cue", Message: first.Error(), Pos: errorPos(first, filename, file)}
}

// errorPos picks, in order: a reported position inside filename, the
// position of the error path (or its nearest parent) in file, any reported
// position. Disjunction and bound failures often report only schema.cue
// positions or none at all.
func errorPos(e cueerrors.Error, filename string, file cue.Value) token.Pos {
	reported := append([]token.Pos{e.Position()}, e.InputPositions()...)
	reported = append(reported, cueerrors.Positions(e)...)
	for _, p := range reported {
		if p.IsValid() && p.Filename() == filename {
			return p
		}
	}

	if file.Exists() {
		sels := make([]cue.Selector, 0, len(e.Path()))
		for _, label := range e.Path() {
			if unq, err := strconv.Unquote(label); err == nil {
				label = unq
			}
			sels = append(sels, cue.Str(label))
		}
		for n := len(sels); n > 0; n-- {
			if p := file.LookupPath(cue.MakePath(sels[:n]...)).Pos(); p.IsValid() {
				return p
			}
		}
	}

	for _, p := range reported {
		if p.IsValid() {
			return p
		}
	}
	return token.NoPos
}

// IsLoadError reports whether err is a feed definition error.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
