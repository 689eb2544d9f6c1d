package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func withAudit(sink AuditSink) managerOption {
	return func(b *Builder) {
		b.config.Audit.Enabled = true
		b.config.Audit.BufferSize = 64
		b.config.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	}
}

func drainEvents(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []AuditEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func TestAuditLifecycleOrder(t *testing.T) {
	sink := NewChannelSink(64)
	p := &fakeProvider{}
	m, clk := newTestManager(t, p, withAudit(sink))
	p.initial = sessionExpiringIn(clk, 2*time.Hour, "u1")
	p.setRefresh(refreshResult{err: errors.New("revoked")})

	m.GetInitialSession(context.Background())
	clk.Advance(115 * time.Minute)
	m.Close()

	got := eventTypes(drainEvents(sink))
	want := []string{
		auditEventInitialSession,
		auditEventSessionInstalled,
		auditEventRefreshScheduled,
		auditEventRefreshFailed,
		auditEventSessionInvalidated,
		auditEventSessionCleared,
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("audit sequence\n got %v\nwant %v", got, want)
	}
}

func TestAuditCarriesSessionAndErrorCode(t *testing.T) {
	sink := NewChannelSink(64)
	p := &fakeProvider{signOutErr: errors.New("offline")}
	m, clk := newTestManager(t, p, withAudit(sink))
	p.initial = sessionExpiringIn(clk, 2*time.Hour, "u42")

	m.GetInitialSession(context.Background())
	_ = m.SignOut(context.Background())
	m.Close()

	var failed *AuditEvent
	for _, e := range drainEvents(sink) {
		if e.EventType == auditEventSignOutFailed {
			e := e
			failed = &e
		}
	}
	if failed == nil {
		t.Fatal("sign_out_failed not emitted")
	}
	if failed.UserID != "u42" || failed.Success || failed.Error != string(auditErrSignOutFailed) {
		t.Fatalf("unexpected event %+v", failed)
	}
	if !failed.ExpiresAt.Equal(p.initial.ExpiresAt) || failed.Trigger != triggerSignOut {
		t.Fatalf("unexpected event %+v", failed)
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	p := &fakeProvider{}
	m, _ := newTestManager(t, p)
	if m.audit != nil {
		t.Fatal("audit dispatcher should be nil when disabled")
	}
	if m.AuditDropped() != 0 {
		t.Fatal("disabled audit reports drops")
	}
}

func TestAuditJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	p := &fakeProvider{}
	m, clk := newTestManager(t, p, withAudit(NewJSONWriterSink(&buf)))
	p.initial = sessionExpiringIn(clk, 2*time.Hour, "u1")

	m.GetInitialSession(context.Background())
	m.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatal("no audit output")
	}
	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.EventType != auditEventInitialSession || first.Trigger != triggerInitial {
		t.Fatalf("unexpected first event %+v", first)
	}
}

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{context.DeadlineExceeded, auditErrTimeout},
		{context.Canceled, auditErrCanceled},
		{ErrExpiryUnknown, auditErrExpiryUnknown},
		{errors.New("x"), auditErrProviderFailed},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
