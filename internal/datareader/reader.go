// Package datareader loads a Steam-style games CSV into a catalog
// repository. Malformed rows are logged and skipped; a run only fails when
// the header cannot be read or the context ends.
package datareader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuihairu/gamelib/internal/domain"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Dataset column names.
const (
	ColAppID       = "AppID"
	ColName        = "Name"
	ColReleaseDate = "Release date"
	ColPrice       = "Price"
	ColAbout       = "About the game"
	ColImage       = "Header image"
	ColWebsite     = "Website"
	ColMovies      = "Movies"
	ColPublishers  = "Publishers"
	ColGenres      = "Genres"
	ColLanguages   = "Supported languages"
	ColWindows     = "Windows"
	ColMac         = "Mac"
	ColLinux       = "Linux"
	ColCategories  = "Categories"
	ColTags        = "Tags"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrBadValue      = errors.New("bad value")
)

// Stats summarizes one ingestion run.
type Stats struct {
	Rows       int `json:"rows" yaml:"rows"`
	Games      int `json:"games" yaml:"games"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Failed     int `json:"failed" yaml:"failed"`
	Publishers int `json:"publishers" yaml:"publishers"`
	Genres     int `json:"genres" yaml:"genres"`
	Tags       int `json:"tags" yaml:"tags"`
	Categories int `json:"categories" yaml:"categories"`
	Languages  int `json:"languages" yaml:"languages"`
}

// Opener resolves a dataset location to a stream.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

type Reader struct {
	repo    ports.Repository
	opener  Opener
	log     *slog.Logger
	metrics *telemetry.IngestMetrics
	tracer  trace.Tracer
}

type Option func(*Reader)

func WithLogger(l *slog.Logger) Option { return func(r *Reader) { r.log = l } }

func WithOpener(o Opener) Option { return func(r *Reader) { r.opener = o } }

func WithMetrics(m *telemetry.IngestMetrics) Option { return func(r *Reader) { r.metrics = m } }

func New(repo ports.Repository, opts ...Option) *Reader {
	r := &Reader{repo: repo, log: slog.Default(), tracer: otel.Tracer("gamelib/datareader")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReadFile ingests the dataset at location. Without an Opener only local
// paths are supported.
func (r *Reader) ReadFile(ctx context.Context, location string) (Stats, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if r.opener != nil {
		rc, err = r.opener.Open(ctx, location)
	} else {
		rc, err = os.Open(location)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("open dataset %s: %w", location, err)
	}
	defer rc.Close()
	return r.read(ctx, location, rc)
}

// Read ingests a dataset stream.
func (r *Reader) Read(ctx context.Context, src io.Reader) (Stats, error) {
	return r.read(ctx, "stream", src)
}

// run holds per-ingestion dedup state.
type run struct {
	publishers map[string]*domain.Publisher
	genres     map[string]*domain.Genre
	tags       map[string]struct{}
	categories map[string]struct{}
	languages  map[string]struct{}
}

func (r *Reader) read(ctx context.Context, source string, src io.Reader) (st Stats, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "datareader.read", trace.WithAttributes(telemetry.SourceKey.String(source)))
	defer func() {
		span.SetAttributes(attribute.Int("ingest.games", st.Games), attribute.Int("ingest.skipped", st.Skipped))
		span.End()
		r.metrics.Record(ctx, source, st.Rows, st.Games, st.Skipped, st.Failed, time.Since(start))
	}()

	// UTF-8 with or without BOM.
	dec := transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return st, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	state := &run{
		publishers: map[string]*domain.Publisher{},
		genres:     map[string]*domain.Genre{},
		tags:       map[string]struct{}{},
		categories: map[string]struct{}{},
		languages:  map[string]struct{}{},
	}
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			st.Rows++
			st.Skipped++
			r.log.Warn("skipping malformed csv record", "source", source, "line", pe.Line, "error", pe.Err)
			continue
		}
		if err != nil {
			return st, fmt.Errorf("read dataset: %w", err)
		}
		st.Rows++
		line, _ := cr.FieldPos(0)

		row := record{cols: cols, values: rec}
		g, pub, genres, err := buildGame(row)
		if err != nil {
			st.Skipped++
			r.log.Warn("skipping row", "source", source, "line", line, "error", err)
			continue
		}
		if err := r.store(ctx, state, g, pub, genres); err != nil {
			st.Failed++
			r.log.Error("storing row failed", "source", source, "line", line, "app_id", g.ID(), "error", err)
			continue
		}
		st.Games++
		for _, t := range g.Tags() {
			state.tags[t] = struct{}{}
		}
		for _, c := range g.Categories() {
			state.categories[c] = struct{}{}
		}
		for _, l := range g.Languages() {
			state.languages[l] = struct{}{}
		}
	}
	st.Publishers = len(state.publishers)
	st.Genres = len(state.genres)
	st.Tags = len(state.tags)
	st.Categories = len(state.categories)
	st.Languages = len(state.languages)
	r.log.Info("dataset ingested", "source", source, "rows", st.Rows, "games", st.Games, "skipped", st.Skipped, "failed", st.Failed)
	return st, nil
}

// store swaps the row's publisher and genres for the instances already seen
// in this run, registers new ones, then adds the game.
func (r *Reader) store(ctx context.Context, state *run, g *domain.Game, pub *domain.Publisher, genres []*domain.Genre) error {
	if pub != nil {
		if seen, ok := state.publishers[pub.Name()]; ok {
			pub = seen
		} else {
			if err := r.repo.AddPublisher(ctx, pub); err != nil {
				return err
			}
			state.publishers[pub.Name()] = pub
		}
		g.SetPublisher(pub)
	}
	for _, gn := range genres {
		if seen, ok := state.genres[gn.Name()]; ok {
			gn = seen
		} else {
			if err := r.repo.AddGenre(ctx, gn); err != nil {
				return err
			}
			state.genres[gn.Name()] = gn
		}
		g.AddGenre(gn)
	}
	return r.repo.AddGame(ctx, g)
}

type record struct {
	cols   map[string]int
	values []string
}

func (r record) get(col string) (string, error) {
	i, ok := r.cols[col]
	if !ok || i >= len(r.values) {
		return "", fmt.Errorf("%w %q", ErrMissingColumn, col)
	}
	return strings.TrimSpace(r.values[i]), nil
}

// optional returns "" for absent columns.
func (r record) optional(col string) string {
	v, _ := r.get(col)
	return v
}

// buildGame converts one row. Any error rejects the whole row.
func buildGame(row record) (*domain.Game, *domain.Publisher, []*domain.Genre, error) {
	get := func(cols ...string) ([]string, error) {
		out := make([]string, len(cols))
		for i, c := range cols {
			v, err := row.get(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	v, err := get(ColAppID, ColName, ColReleaseDate, ColPrice, ColAbout, ColImage,
		ColPublishers, ColGenres, ColLanguages, ColWindows, ColMac, ColLinux, ColCategories, ColTags)
	if err != nil {
		return nil, nil, nil, err
	}
	appID, title, released, price, about, image := v[0], v[1], v[2], v[3], v[4], v[5]
	publisher, genres, languages := v[6], v[7], v[8]
	windows, mac, linux, categories, tags := v[9], v[10], v[11], v[12], v[13]

	id, err := strconv.ParseInt(appID, 10, 64)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s %q", ErrBadValue, ColAppID, appID)
	}
	g, err := domain.NewGame(id, title)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := g.SetReleaseDate(released); err != nil {
		return nil, nil, nil, err
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s %q", ErrBadValue, ColPrice, price)
	}
	if err := g.SetPrice(p); err != nil {
		return nil, nil, nil, err
	}
	g.SetDescription(about)
	g.SetImageURL(image)
	g.SetWebsiteURL(row.optional(ColWebsite))
	g.SetVideoURL(row.optional(ColMovies))

	for _, l := range splitList(languages) {
		g.AddLanguage(strings.TrimSpace(strings.Trim(l, "[]'\"")))
	}
	g.SetSystemSupport("windows", isTrue(windows))
	g.SetSystemSupport("mac", isTrue(mac))
	g.SetSystemSupport("linux", isTrue(linux))
	for _, c := range splitList(categories) {
		g.AddCategory(c)
	}
	for _, t := range splitList(tags) {
		g.AddTag(t)
	}

	var pub *domain.Publisher
	if p := domain.NewPublisher(publisher); !p.IsNull() {
		pub = p
	}
	var gs []*domain.Genre
	for _, name := range splitList(genres) {
		gs = append(gs, domain.NewGenre(name))
	}
	return g, pub, gs, nil
}

// splitList splits a comma separated cell, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTrue(s string) bool { return strings.EqualFold(strings.TrimSpace(s), "true") }
