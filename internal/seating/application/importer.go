package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"chirho-events/internal/observability/metrics"
	seating "chirho-events/internal/seating/domain"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Option configures the importer.
type Option func(*Importer)

// WithLayouts replaces the column layouts.
func WithLayouts(layouts map[seating.Kind]Layout) Option {
	return func(i *Importer) {
		if len(layouts) > 0 {
			i.layouts = layouts
		}
	}
}

// WithDefaultCapacity sets the capacity of sections created without a capacity cell.
func WithDefaultCapacity(capacity int) Option {
	return func(i *Importer) {
		if capacity >= 0 {
			i.defaultCapacity = capacity
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(i *Importer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Importer applies seating and housing spreadsheets to an event.
type Importer struct {
	repo            seating.Repository
	layouts         map[seating.Kind]Layout
	defaultCapacity int
	clock           Clock
	logger          *log.Logger
}

// NewImporter constructs an importer.
func NewImporter(repo seating.Repository, opts ...Option) (*Importer, error) {
	if repo == nil {
		return nil, errors.New("importer: nil repository")
	}
	i := &Importer{
		repo:    repo,
		layouts: DefaultLayouts(),
		clock:   SystemClock{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// ImportCSV applies CSV lines; the first non-skipped line is the header.
func (i *Importer) ImportCSV(ctx context.Context, eventID string, kind seating.Kind, lines []string) (seating.ImportResult, error) {
	return i.importRecords(ctx, eventID, kind, ParseLines(lines))
}

// ImportXLSX applies the first sheet of a workbook.
func (i *Importer) ImportXLSX(ctx context.Context, eventID string, kind seating.Kind, r io.Reader) (seating.ImportResult, error) {
	records, err := ReadXLSX(r)
	if err != nil {
		result := seating.NewImportResult()
		result.Fail(errors.New("Unable to read spreadsheet: " + err.Error()))
		return result, &InvalidFileError{Err: err}
	}
	return i.importRecords(ctx, eventID, kind, records)
}

// Sections lists the sections of an event and kind with their stored occupancy.
func (i *Importer) Sections(ctx context.Context, eventID string, kind seating.Kind) ([]seating.Section, error) {
	return i.repo.ListSections(ctx, eventID, kind)
}

// InvalidFileError reports an upload that could not be parsed at all.
type InvalidFileError struct {
	Err error
}

func (e *InvalidFileError) Error() string {
	return "invalid import file: " + e.Err.Error()
}

func (e *InvalidFileError) Unwrap() error {
	return e.Err
}

type importRow struct {
	line            int
	section         string
	participantName string
	registrationID  string
	groupName       string
	capacity        string
	participantType string
}

type batch struct {
	eventID    string
	kind       seating.Kind
	result     *seating.ImportResult
	candidates []seating.Candidate
	sections   map[string]seating.Section
	tracker    *seating.CapacityTracker
	seen       map[string]struct{}
	touched    map[string]struct{}
}

func (i *Importer) importRecords(ctx context.Context, eventID string, kind seating.Kind, records []Record) (result seating.ImportResult, err error) {
	start := time.Now()
	result = seating.NewImportResult()
	defer func() {
		outcome := metrics.ResultSuccess
		switch {
		case err != nil && result.Success:
			outcome = metrics.ResultError
		case !result.Success:
			outcome = metrics.ResultRejected
		}
		metrics.ObserveImportBatch(string(kind), outcome, time.Since(start))
		metrics.AddImportRows(string(kind), "created", result.AssignmentsCreated)
		metrics.AddImportRows(string(kind), "updated", result.AssignmentsUpdated)
		metrics.AddImportRows(string(kind), "error", len(result.Errors))
		metrics.AddImportRows(string(kind), "duplicate", len(result.Warnings))
	}()

	if strings.TrimSpace(eventID) == "" {
		result.Fail(seating.ErrEmptyEventID)
		return result, seating.ErrEmptyEventID
	}
	layout, ok := i.layouts[kind]
	if !ok {
		result.Fail(seating.ErrInvalidKind)
		return result, seating.ErrInvalidKind
	}

	var header []string
	if len(records) > 0 {
		header = records[0].Cells
	}
	idx, err := ResolveColumns(header, layout)
	if err != nil {
		result.Fail(err)
		return result, err
	}

	candidates, err := i.repo.ListCandidates(ctx, eventID)
	if err != nil {
		return result, err
	}
	existing, err := i.repo.ListSections(ctx, eventID, kind)
	if err != nil {
		return result, err
	}

	b := &batch{
		eventID:    eventID,
		kind:       kind,
		result:     &result,
		candidates: candidates,
		sections:   make(map[string]seating.Section, len(existing)),
		tracker:    seating.NewCapacityTracker(),
		seen:       make(map[string]struct{}),
		touched:    make(map[string]struct{}),
	}
	for _, section := range existing {
		b.sections[section.Key()] = section
		b.tracker.Track(section)
	}
	defer func() {
		if err == nil {
			return
		}
		if recountErr := i.recountOccupancy(context.WithoutCancel(ctx), b); recountErr != nil {
			i.logger.Printf("import recount after failure failed: event=%s kind=%s err=%v", eventID, kind, recountErr)
		}
	}()

	for _, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		row := importRow{
			line:            record.Line,
			section:         idx.Get(record.Cells, ColumnSection),
			participantName: idx.Get(record.Cells, ColumnParticipantName),
			registrationID:  idx.Get(record.Cells, ColumnRegistrationID),
			groupName:       idx.Get(record.Cells, ColumnGroupName),
			capacity:        idx.Get(record.Cells, ColumnCapacity),
			participantType: idx.Get(record.Cells, ColumnParticipantType),
		}
		if err := i.applyRow(ctx, b, row); err != nil {
			return result, err
		}
	}

	if err := i.recountOccupancy(ctx, b); err != nil {
		return result, err
	}

	i.logger.Printf("import applied: event=%s kind=%s rows=%d sections_created=%d created=%d updated=%d errors=%d warnings=%d",
		eventID, kind, len(records)-1, result.SectionsCreated, result.AssignmentsCreated, result.AssignmentsUpdated,
		len(result.Errors), len(result.Warnings))
	return result, nil
}

// applyRow records row-level problems in the result and returns only
// infrastructure errors.
func (i *Importer) applyRow(ctx context.Context, b *batch, row importRow) error {
	displayName := row.participantName
	if displayName == "" {
		displayName = row.registrationID
	}
	if row.section == "" {
		b.result.AddError(row.line, displayName, &seating.MissingSectionError{})
		return nil
	}

	candidate, err := seating.Match(seating.MatchInput{
		RegistrationID: row.registrationID,
		Name:           row.participantName,
		GroupName:      row.groupName,
		Type:           parseParticipantType(row.participantType),
	}, b.candidates)
	if err != nil {
		b.result.AddError(row.line, displayName, err)
		return nil
	}
	if displayName == "" {
		displayName = candidate.Name
	}

	key := string(candidate.Type) + "|" + candidate.ID
	if _, dup := b.seen[key]; dup {
		b.result.AddDuplicateWarning(row.line, displayName)
		return nil
	}
	b.seen[key] = struct{}{}

	section, err := i.sectionFor(ctx, b, row)
	if err != nil {
		return err
	}

	assignment, err := i.repo.FindAssignment(ctx, b.eventID, b.kind, candidate.Type, candidate.ID)
	if err != nil {
		return err
	}
	if assignment != nil {
		if assignment.SectionID == section.ID {
			b.result.AssignmentsUpdated++
			return nil
		}
		if err := b.tracker.Reserve(section.ID); err != nil {
			b.result.AddError(row.line, displayName, err)
			return nil
		}
		if err := i.repo.MoveAssignment(ctx, assignment.ID, section.ID); err != nil {
			return err
		}
		b.tracker.Release(assignment.SectionID)
		b.touched[assignment.SectionID] = struct{}{}
		b.touched[section.ID] = struct{}{}
		b.result.AssignmentsUpdated++
		return nil
	}

	if err := b.tracker.Reserve(section.ID); err != nil {
		b.result.AddError(row.line, displayName, err)
		return nil
	}
	created := seating.NewAssignment(b.eventID, b.kind, section.ID, candidate.Type, candidate.ID, i.clock.Now())
	if err := i.repo.CreateAssignment(ctx, created); err != nil {
		return err
	}
	b.touched[section.ID] = struct{}{}
	b.result.AssignmentsCreated++
	return nil
}

func (i *Importer) sectionFor(ctx context.Context, b *batch, row importRow) (seating.Section, error) {
	key := seating.SectionKey(row.section)
	if section, ok := b.sections[key]; ok {
		return section, nil
	}
	capacity := i.defaultCapacity
	if parsed, err := strconv.Atoi(row.capacity); err == nil && parsed >= 0 {
		capacity = parsed
	}
	section, created, err := i.repo.CreateSection(ctx, seating.NewSection(b.eventID, b.kind, row.section, capacity, i.clock.Now()))
	if err != nil {
		return seating.Section{}, err
	}
	b.sections[key] = section
	b.tracker.Track(section)
	if created {
		b.touched[section.ID] = struct{}{}
		b.result.SectionsCreated++
	} else {
		i.logger.Printf("import reused concurrently created section: event=%s kind=%s section=%q", b.eventID, b.kind, section.Name)
	}
	return section, nil
}

// recountOccupancy persists occupancy from stored assignments rather than
// from the batch counters.
func (i *Importer) recountOccupancy(ctx context.Context, b *batch) error {
	ids := make([]string, 0, len(b.touched))
	for id := range b.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		count, err := i.repo.CountAssignments(ctx, id)
		if err != nil {
			return err
		}
		if err := i.repo.UpdateOccupancy(ctx, id, count); err != nil {
			return err
		}
	}
	return nil
}

func parseParticipantType(raw string) seating.ParticipantType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "group", "grp":
		return seating.ParticipantGroup
	case "individual", "ind":
		return seating.ParticipantIndividual
	}
	return ""
}
