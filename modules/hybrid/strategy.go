package hybrid

import (
	"context"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/caps"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/jsonrpc"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/rest"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// Strategy is one protocol's rendition of the client operations. The
// session tries strategies in capability order and never retries one
// inside a single operation.
type Strategy interface {
	Protocol() string
	Authenticate(ctx context.Context, password string) error
	Timetable(ctx context.Context, q TimetableQuery) (untis.Timetable, error)
	Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error)
	HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error)
	Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error)
}

// TimetableQuery names the element and the closed date range to fetch.
type TimetableQuery struct {
	Type  untis.ElementType
	ID    int64
	Start time.Time
	End   time.Time
}

type rpcStrategy struct {
	s *Session
}

func (r rpcStrategy) Protocol() string { return caps.ProtocolRPC }

func (r rpcStrategy) Authenticate(ctx context.Context, password string) error {
	session, err := r.s.rpc.Authenticate(ctx, r.s.cfg.Identity, password)
	if err != nil {
		return err
	}
	r.s.notePerson(session.PersonID, session.PersonType, session.KlasseID)

	return nil
}

func (r rpcStrategy) Timetable(ctx context.Context, q TimetableQuery) (untis.Timetable, error) {
	res, err := r.s.rpc.Timetable(ctx, jsonrpc.ElementRef{Type: q.Type, ID: q.ID}, q.Start, q.End, r.s.MasterData())
	if err != nil {
		return untis.Timetable{}, err
	}
	if res.MasterData != nil {
		r.s.learnMasterData(res.MasterData.Entries())
	}

	return res.Timetable, nil
}

func (r rpcStrategy) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	return r.s.rpc.Absences(ctx, start, end)
}

func (r rpcStrategy) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	return r.s.rpc.HomeWorks(ctx, start, end)
}

func (r rpcStrategy) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	return r.s.rpc.Exams(ctx, start, end)
}

type restStrategy struct {
	s *Session
}

func (r restStrategy) Protocol() string { return caps.ProtocolREST }

func (r restStrategy) Authenticate(ctx context.Context, password string) error {
	return r.s.rest.Authenticate(ctx, r.s.cfg.Identity, password)
}

// refresh renews the bearer token ahead of a data call when it has run
// out; without a stored password the stale token is kept and the server
// gets to reject it.
func (r restStrategy) refresh(ctx context.Context) {
	if password := r.s.password(); password != "" {
		if err := r.s.rest.EnsureToken(ctx, r.s.cfg.Identity, password); err == nil {
			r.s.noteToken(r.s.rest.Token())
		}
	}
}

func (r restStrategy) Timetable(ctx context.Context, q TimetableQuery) (untis.Timetable, error) {
	r.refresh(ctx)

	return r.s.rest.TimetableByRange(ctx, q.Type, q.ID, q.Start, q.End, rest.Paging{}, r.s.MasterData())
}

func (r restStrategy) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	r.refresh(ctx)
	personID, _, _ := r.s.person()

	return r.s.rest.Absences(ctx, personID, start, end)
}

func (r restStrategy) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	return nil, untis.ErrNotImplemented
}

func (r restStrategy) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	return nil, untis.ErrNotImplemented
}

type htmlStrategy struct {
	s *Session
}

func (h htmlStrategy) Protocol() string { return caps.ProtocolHTML }

func (h htmlStrategy) Authenticate(ctx context.Context, password string) error {
	return h.s.html.Authenticate(ctx, h.s.cfg.Identity, password)
}

func (h htmlStrategy) Timetable(ctx context.Context, q TimetableQuery) (untis.Timetable, error) {
	return h.s.html.Timetable(ctx, q.Type, q.ID, q.Start, q.End)
}

func (h htmlStrategy) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	return h.s.html.Absences(ctx, start, end)
}

func (h htmlStrategy) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	return h.s.html.HomeWorks(ctx, start, end)
}

func (h htmlStrategy) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	return h.s.html.Exams(ctx, start, end)
}
