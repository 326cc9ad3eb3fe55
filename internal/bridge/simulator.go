package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

type simRecord struct {
	at        time.Time
	value     float64
	secondary *float64
}

// Simulator emulates the platform bridge in memory. It keeps written records,
// answers reads with the same JSON the device bridge produces and can be put
// into the failure states the gateway has to handle.
type Simulator struct {
	mu sync.Mutex

	valid          bool
	installed      bool
	tooOld         bool
	updateRequired bool
	granted        bool
	grantOnRequest bool
	closed         bool

	records   map[models.Kind][]simRecord
	overrides map[string]string
	calls     []string
}

// NewSimulator returns an installed simulator without granted permissions.
// Requesting permissions grants them.
func NewSimulator() *Simulator {
	return &Simulator{
		valid:          true,
		installed:      true,
		grantOnRequest: true,
		records:        make(map[models.Kind][]simRecord),
		overrides:      make(map[string]string),
	}
}

func (s *Simulator) SetValid(v bool)          { s.mu.Lock(); s.valid = v; s.mu.Unlock() }
func (s *Simulator) SetInstalled(v bool)      { s.mu.Lock(); s.installed = v; s.mu.Unlock() }
func (s *Simulator) SetTooOld(v bool)         { s.mu.Lock(); s.tooOld = v; s.mu.Unlock() }
func (s *Simulator) SetUpdateRequired(v bool) { s.mu.Lock(); s.updateRequired = v; s.mu.Unlock() }
func (s *Simulator) SetGranted(v bool)        { s.mu.Lock(); s.granted = v; s.mu.Unlock() }
func (s *Simulator) SetGrantOnRequest(v bool) { s.mu.Lock(); s.grantOnRequest = v; s.mu.Unlock() }

// Override forces the raw reply of the named method.
func (s *Simulator) Override(method, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method] = reply
}

// Seed stores a record as if it had been written on the device.
func (s *Simulator) Seed(kind models.Kind, at time.Time, value float64, secondary *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[kind] = append(s.records[kind], simRecord{at: at.UTC(), value: value, secondary: secondary})
}

// Calls returns the names of the methods invoked so far.
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Ready implements Invoker.
func (s *Simulator) Ready(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %v", ErrContextInvalid, ErrClosed)
	}
	if !s.valid {
		return ErrContextInvalid
	}
	return nil
}

// Call implements Invoker.
func (s *Simulator) Call(ctx context.Context, m Method, args ...any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", callError(m, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.calls = append(s.calls, m.Name)

	if reply, ok := s.overrides[m.Name]; ok {
		return reply, nil
	}

	switch m.Name {
	case MethodInit.Name:
		return s.initReply(), nil
	case MethodCheckPermissions.Name:
		if s.granted {
			return "ALL_GRANTED (5/5)", nil
		}
		return "MISSING_PERMISSIONS (0/5)", nil
	case MethodRequestPermissions.Name:
		if !s.installed {
			return replyNotInstalled, nil
		}
		if s.grantOnRequest {
			s.granted = true
		}
		return "PERMISSION_REQUEST_LAUNCHED", nil
	}

	for _, d := range metric.All() {
		switch m.Name {
		case d.ReadMethod:
			return s.read(d, args)
		case d.WriteMethod:
			return s.write(d, args)
		}
	}
	return "", callError(m, fmt.Errorf("unknown method"))
}

func (s *Simulator) initReply() string {
	switch {
	case s.tooOld:
		return replyTooOld
	case !s.installed:
		return replyNotInstalled
	case s.updateRequired:
		return replyUpdateRequired
	}
	return replyInitOK
}

func (s *Simulator) read(d metric.Descriptor, args []any) (string, error) {
	if !s.granted {
		return replySecurityError, nil
	}

	var start, end time.Time
	if len(args) == 2 {
		var err error
		if start, err = parseArgTime(args[0]); err != nil {
			return "ERROR: " + err.Error(), nil
		}
		if end, err = parseArgTime(args[1]); err != nil {
			return "ERROR: " + err.Error(), nil
		}
	}

	recs := make([]simRecord, 0, len(s.records[d.Kind]))
	for _, r := range s.records[d.Kind] {
		if !start.IsZero() && (r.at.Before(start) || r.at.After(end)) {
			continue
		}
		recs = append(recs, r)
	}
	if len(recs) == 0 {
		return d.NoDataTokens[0], nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].at.Before(recs[j].at) })

	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		obj := map[string]any{
			d.TimeFields[0]:  r.at.Format(time.RFC3339Nano),
			d.ValueFields[0]: r.value,
		}
		if d.Paired() && r.secondary != nil {
			obj[d.SecondaryFields[0]] = *r.secondary
		}
		out = append(out, obj)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "ERROR: " + err.Error(), nil
	}
	return string(data), nil
}

func (s *Simulator) write(d metric.Descriptor, args []any) (string, error) {
	if !s.granted {
		return "ERROR: SecurityException: permission denied", nil
	}
	if len(args) < 2 {
		return "ERROR: missing arguments", nil
	}

	at, err := parseArgTime(args[len(args)-1])
	if err != nil {
		return "ERROR: " + err.Error(), nil
	}
	value, ok := toFloat(args[0])
	if !ok {
		return "ERROR: invalid value", nil
	}

	rec := simRecord{at: at, value: value}
	if d.Paired() {
		sec, ok := toFloat(args[1])
		if !ok {
			return "ERROR: invalid secondary value", nil
		}
		rec.secondary = &sec
	}
	s.records[d.Kind] = append(s.records[d.Kind], rec)
	return "OK", nil
}

// Close implements Invoker.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func parseArgTime(v any) (time.Time, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected timestamp string, got %T", v)
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

var _ Invoker = (*Simulator)(nil)
