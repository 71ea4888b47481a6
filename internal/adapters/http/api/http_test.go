package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/klepsydra/internal/adapters/http/api"
	"github.com/okian/klepsydra/internal/adapters/repository"
	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/splits"
	"github.com/okian/klepsydra/internal/domain/stats"
	"github.com/okian/klepsydra/internal/domain/timer"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps implements api.Dependencies for handler tests.
type mockDeps struct {
	seen           map[string]bool
	enqueueSuccess bool
	enqueued       []model.InputEvent
	attempts       []model.Attempt
	trailing       stats.Trailing
	bests          []stats.PersonalBest
	definitions    []splits.PhaseDefinition
	marks          map[string][]splits.Mark
	imported       int
	importErr      error
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:           make(map[string]bool),
		enqueueSuccess: true,
		marks:          make(map[string][]splits.Mark),
	}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) { delete(m.seen, id) }

func (m *mockDeps) Size() int64 { return int64(len(m.seen)) }

func (m *mockDeps) Enqueue(_ context.Context, e model.InputEvent) bool {
	if !m.enqueueSuccess {
		return false
	}
	m.enqueued = append(m.enqueued, e)
	return true
}

func (m *mockDeps) Attempts(_ context.Context, offset, limit int) ([]model.Attempt, error) {
	if offset >= len(m.attempts) {
		return []model.Attempt{}, nil
	}
	end := len(m.attempts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return m.attempts[offset:end], nil
}

func (m *mockDeps) Attempt(_ context.Context, id string) (model.Attempt, error) {
	for _, a := range m.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Attempt{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
}

func (m *mockDeps) ApplyPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error) {
	for i, a := range m.attempts {
		if a.ID == id {
			a.Result = a.Result.WithManualPenalty(p)
			m.attempts[i] = a
			return a, nil
		}
	}
	return model.Attempt{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
}

func (m *mockDeps) Trailing(context.Context) stats.Trailing { return m.trailing }

func (m *mockDeps) PersonalBests(context.Context) []stats.PersonalBest { return m.bests }

func (m *mockDeps) SetSplitDefinitions(_ context.Context, defs []splits.PhaseDefinition) ([]splits.PhaseDefinition, error) {
	normalized, err := splits.NormalizeDefinitions(defs)
	if err != nil {
		return nil, err
	}
	m.definitions = normalized
	return normalized, nil
}

func (m *mockDeps) RecordSplits(ctx context.Context, attemptID string, marks []splits.Mark) error {
	if _, err := m.Attempt(ctx, attemptID); err != nil {
		return err
	}
	m.marks[attemptID] = append(m.marks[attemptID], marks...)
	return nil
}

func (m *mockDeps) SplitReport(ctx context.Context, attemptID string) (splits.Report, error) {
	a, err := m.Attempt(ctx, attemptID)
	if err != nil {
		return splits.Report{}, err
	}
	c := splits.NewCapture(attemptID)
	for _, mk := range m.marks[attemptID] {
		c.Record(mk.Phase, mk.TS)
	}
	return splits.Report{
		AttemptID: attemptID,
		Durations: splits.Reduce(m.definitions, c, a.Result.RawMS),
		Issues:    splits.Validate(m.definitions, c),
	}, nil
}

func (m *mockDeps) ImportSession(context.Context, []byte) (int, error) {
	return m.imported, m.importErr
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"attempts": len(m.attempts)}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps, 100).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func storedAttempt(id string, key, rawMS int64) model.Attempt {
	r := timer.Result{StartTS: key - rawMS, EndTS: key, RawMS: rawMS}
	return model.Attempt{
		ID:          id,
		OrderingKey: key,
		Result:      r.WithManualPenalty(penalty.None),
	}
}

func TestPostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		post := func(body string) *http.Response {
			resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(body))
			So(err, ShouldBeNil)
			return resp
		}

		Convey("When posting a valid toggle event", func() {
			resp := post(`{"event_id": "e1", "kind": "toggle"}`)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued, ShouldHaveLength, 1)
			So(deps.enqueued[0].Kind, ShouldEqual, model.EventToggle)
			So(deps.enqueued[0].At, ShouldBeGreaterThan, 0)
		})

		Convey("When posting the same event twice", func() {
			first := post(`{"event_id": "e1", "kind": "press", "at": 123}`)
			first.Body.Close()
			resp := post(`{"event_id": "e1", "kind": "press", "at": 123}`)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var ack map[string]any
			So(json.NewDecoder(resp.Body).Decode(&ack), ShouldBeNil)
			So(ack["duplicate"], ShouldBeTrue)
			So(deps.enqueued, ShouldHaveLength, 1)
		})

		Convey("When the queue is full", func() {
			deps.enqueueSuccess = false
			resp := post(`{"event_id": "e2", "kind": "release"}`)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)

			Convey("Then the event id is released for retry", func() {
				deps.enqueueSuccess = true
				retry := post(`{"event_id": "e2", "kind": "release"}`)
				defer retry.Body.Close()
				So(retry.StatusCode, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When posting invalid bodies", func() {
			for _, body := range []string{
				`not json`,
				`{"kind": "toggle"}`,
				`{"event_id": "e3"}`,
				`{"event_id": "e3", "kind": "mash"}`,
				`{"event_id": "e3", "kind": "press", "at": -5}`,
			} {
				resp := post(body)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				resp.Body.Close()
			}
		})
	})
}

func TestAttemptEndpoints(t *testing.T) {
	Convey("Given a history with three attempts", t, func() {
		deps := newMockDeps()
		deps.attempts = []model.Attempt{
			storedAttempt("a1", 1000, 12000),
			storedAttempt("a2", 2000, 11000),
			storedAttempt("a3", 3000, 13000),
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When listing attempts", func() {
			resp, err := http.Get(srv.URL + "/attempts?limit=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got []model.Attempt
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].ID, ShouldEqual, "a1")
		})

		Convey("When the limit exceeds the cap", func() {
			resp, err := http.Get(srv.URL + "/attempts?limit=101")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching a single attempt", func() {
			resp, err := http.Get(srv.URL + "/attempts/a2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got model.Attempt
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.ID, ShouldEqual, "a2")
		})

		Convey("When fetching a missing attempt", func() {
			resp, err := http.Get(srv.URL + "/attempts/ghost")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When applying a penalty", func() {
			resp, err := http.Post(srv.URL+"/attempts/a1/penalty", "application/json",
				strings.NewReader(`{"penalty": "plus2"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got model.Attempt
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Result.Penalty, ShouldEqual, penalty.Plus2)
			So(*got.Result.FinalMS, ShouldEqual, 14000)
		})

		Convey("When applying an unknown penalty", func() {
			resp, err := http.Post(srv.URL+"/attempts/a1/penalty", "application/json",
				strings.NewReader(`{"penalty": "plus4"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When applying a penalty to a missing attempt", func() {
			resp, err := http.Post(srv.URL+"/attempts/ghost/penalty", "application/json",
				strings.NewReader(`{"penalty": "dnf"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSplitEndpoints(t *testing.T) {
	Convey("Given defined phases and one attempt", t, func() {
		deps := newMockDeps()
		deps.attempts = []model.Attempt{storedAttempt("a1", 10000, 9000)}
		srv := newTestServer(deps)
		defer srv.Close()

		putDefinitions := func(body string) *http.Response {
			req, err := http.NewRequest(http.MethodPut, srv.URL+"/splits/definitions", strings.NewReader(body))
			So(err, ShouldBeNil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			return resp
		}

		Convey("When defining phases out of order", func() {
			resp := putDefinitions(`{"phases": [{"name": "f2l", "order": 2}, {"name": "cross", "order": 1}]}`)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got struct {
				Phases []splits.PhaseDefinition `json:"phases"`
			}
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Phases, ShouldHaveLength, 2)
			So(got.Phases[0].Name, ShouldEqual, "cross")
			So(got.Phases[0].Order, ShouldEqual, 1)
			So(got.Phases[1].Name, ShouldEqual, "f2l")
		})

		Convey("When defining duplicate phases", func() {
			resp := putDefinitions(`{"phases": [{"name": "cross", "order": 1}, {"name": "cross", "order": 2}]}`)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When recording and reading splits", func() {
			putDefinitions(`{"phases": [{"name": "cross", "order": 1}, {"name": "f2l", "order": 2}, {"name": "ll", "order": 3}]}`).Body.Close()

			resp, err := http.Post(srv.URL+"/attempts/a1/splits", "application/json",
				strings.NewReader(`{"marks": [{"phase": "cross", "ts": 1000}, {"phase": "f2l", "ts": 4000}]}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var report splits.Report
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			So(report.AttemptID, ShouldEqual, "a1")
			So(report.Durations, ShouldHaveLength, 3)
			So(*report.Durations[0].DurationMS, ShouldEqual, 3000)
			So(*report.Durations[1].DurationMS, ShouldEqual, 5000)
			So(report.Durations[2].DurationMS, ShouldBeNil)

			getResp, err := http.Get(srv.URL + "/attempts/a1/splits")
			So(err, ShouldBeNil)
			defer getResp.Body.Close()
			So(getResp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("When recording splits for a missing attempt", func() {
			resp, err := http.Post(srv.URL+"/attempts/ghost/splits", "application/json",
				strings.NewReader(`{"marks": [{"phase": "cross", "ts": 1000}]}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStatsEndpoints(t *testing.T) {
	Convey("Given statistics to serve", t, func() {
		deps := newMockDeps()
		value := int64(11500)
		deps.trailing = stats.Trailing{
			Count: 7,
			Aggregates: []stats.Aggregate{
				{Category: "ao5", WindowResult: stats.WindowResult{Size: 5, ValueMS: &value}},
			},
		}
		deps.bests = []stats.PersonalBest{
			{Category: "single", ValueMS: 9800, AttemptIDs: []string{"a4"}, AchievedAt: 4000},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When fetching trailing aggregates", func() {
			resp, err := http.Get(srv.URL + "/stats/trailing")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got stats.Trailing
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Count, ShouldEqual, 7)
			So(got.Aggregates, ShouldHaveLength, 1)
			So(*got.Aggregates[0].ValueMS, ShouldEqual, 11500)
		})

		Convey("When fetching personal bests", func() {
			resp, err := http.Get(srv.URL + "/stats/bests")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got struct {
				Bests []stats.PersonalBest `json:"bests"`
			}
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Bests, ShouldHaveLength, 1)
			So(got.Bests[0].Category, ShouldEqual, "single")
		})

		Convey("When fetching service stats", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

func TestImportEndpoint(t *testing.T) {
	Convey("Given the import endpoint", t, func() {
		deps := newMockDeps()
		deps.imported = 3
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When uploading an export", func() {
			resp, err := http.Post(srv.URL+"/import", "application/json",
				strings.NewReader(`[[[0, 12000], "R U", "", 1700000000]]`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got map[string]int
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got["imported"], ShouldEqual, 3)
		})

		Convey("When the import fails", func() {
			deps.importErr = fmt.Errorf("malformed export")
			resp, err := http.Post(srv.URL+"/import", "application/json", strings.NewReader(`{`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
	})
}
