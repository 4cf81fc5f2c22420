package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/testgen-workbench/internal/events"
	"github.com/noah-isme/testgen-workbench/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SubmissionResolved
	err    error
}

func (p *recordingPublisher) PublishResolved(_ context.Context, event events.SubmissionResolved) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) published() []events.SubmissionResolved {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.SubmissionResolved(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(dispatcher *stubDispatcher, publisher events.Publisher) (*SessionRegistry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	registry := NewSessionRegistry(dispatcher, publisher, 10*time.Minute, testLogger())
	registry.now = clock.Now
	return registry, clock
}

func TestRegistryCreateAndGet(t *testing.T) {
	registry, _ := newTestRegistry(&stubDispatcher{}, nil)

	session := registry.Create()
	require.NotEmpty(t, session.ID)
	require.Equal(t, PhaseIdle, session.Controller.Snapshot().Phase)
	require.Equal(t, 1, registry.Len())

	found, err := registry.Get(session.ID)
	require.NoError(t, err)
	require.Same(t, session, found)

	other := registry.Create()
	require.NotEqual(t, session.ID, other.ID)
	require.NotSame(t, session.Controller, other.Controller)
}

func TestRegistryGetUnknownSession(t *testing.T) {
	registry, _ := newTestRegistry(&stubDispatcher{}, nil)

	_, err := registry.Get("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistrySweepExpiresIdleSessions(t *testing.T) {
	registry, clock := newTestRegistry(&stubDispatcher{}, nil)

	stale := registry.Create()
	clock.Advance(8 * time.Minute)
	fresh := registry.Create()
	clock.Advance(3 * time.Minute)

	require.Equal(t, 1, registry.Sweep())

	_, err := registry.Get(stale.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Get(fresh.ID)
	require.NoError(t, err)
}

func TestRegistryGetExtendsSessionLifetime(t *testing.T) {
	registry, clock := newTestRegistry(&stubDispatcher{}, nil)

	session := registry.Create()
	clock.Advance(9 * time.Minute)
	_, err := registry.Get(session.ID)
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)

	require.Zero(t, registry.Sweep())
	require.Equal(t, 1, registry.Len())
}

func TestRegistrySweepKeepsInFlightSessions(t *testing.T) {
	dispatcher := &stubDispatcher{release: make(chan struct{})}
	registry, clock := newTestRegistry(dispatcher, nil)

	session := registry.Create()
	session.Controller.SelectFile(&models.Document{Name: "srs.pdf"})
	_, done := session.Controller.SubmitAsync(context.Background())

	clock.Advance(time.Hour)
	require.Zero(t, registry.Sweep())
	require.Equal(t, 1, registry.Len())

	close(dispatcher.release)
	<-done
	require.Equal(t, 1, registry.Sweep())
	require.Zero(t, registry.Len())
}

func TestRegistrySweepKeepsWatchedSessions(t *testing.T) {
	registry, clock := newTestRegistry(&stubDispatcher{}, nil)

	session := registry.Create()
	_, cancel := session.Controller.Subscribe()

	clock.Advance(time.Hour)
	require.Zero(t, registry.Sweep())
	_, err := registry.Get(session.ID)
	require.NoError(t, err)

	cancel()
	clock.Advance(time.Hour)
	require.Equal(t, 1, registry.Sweep())
	require.Zero(t, registry.Len())
}

func TestRegistryEventNamesDispatchedDocument(t *testing.T) {
	publisher := &recordingPublisher{}
	dispatcher := &stubDispatcher{release: make(chan struct{}), records: []models.TestCase{{ID: "TC1"}}}
	registry, _ := newTestRegistry(dispatcher, publisher)

	session := registry.Create()
	session.Controller.SelectFile(&models.Document{Name: "a.pdf"})
	_, done := session.Controller.SubmitAsync(context.Background())

	session.Controller.SelectFile(&models.Document{Name: "b.pdf"})
	close(dispatcher.release)
	<-done

	published := publisher.published()
	require.Len(t, published, 1)
	require.Equal(t, "a.pdf", published[0].Document)
	require.Equal(t, "succeeded", published[0].Phase)
}

func TestRegistryPublishesResolutions(t *testing.T) {
	publisher := &recordingPublisher{}
	dispatcher := &stubDispatcher{records: []models.TestCase{{ID: "TC1"}, {ID: "TC2"}}}
	registry, _ := newTestRegistry(dispatcher, publisher)

	session := registry.Create()
	session.Controller.SelectFile(&models.Document{Name: "srs.pdf"})
	session.Controller.Submit(context.Background())

	dispatcher.records = nil
	dispatcher.err = errors.New("unreachable")
	session.Controller.Submit(context.Background())

	published := publisher.published()
	require.Len(t, published, 2)

	require.Equal(t, session.ID, published[0].SessionID)
	require.Equal(t, "srs.pdf", published[0].Document)
	require.Equal(t, "succeeded", published[0].Phase)
	require.Equal(t, 2, published[0].TestCases)
	require.Empty(t, published[0].Error)

	require.Equal(t, "failed", published[1].Phase)
	require.Zero(t, published[1].TestCases)
	require.Equal(t, FallbackErrorMessage, published[1].Error)
}

func TestRegistryPublishFailureDoesNotAffectState(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("nats down")}
	registry, _ := newTestRegistry(&stubDispatcher{records: []models.TestCase{{ID: "TC1"}}}, publisher)

	session := registry.Create()
	session.Controller.SelectFile(&models.Document{Name: "srs.pdf"})
	session.Controller.Submit(context.Background())

	require.Equal(t, PhaseSucceeded, session.Controller.Snapshot().Phase)
	require.Len(t, publisher.published(), 1)
}

func TestRegistryStartStopsWithContext(t *testing.T) {
	registry, _ := newTestRegistry(&stubDispatcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	registry.Start(ctx)
	cancel()

	registry.Create()
	require.Equal(t, 1, registry.Len())
}
