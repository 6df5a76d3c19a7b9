// Package sim provides an in-process outstation that speaks the
// ports.Connection contract. It stands in for a real IEC 60870-5-104 link:
// it answers interrogations, test frames and commands, and emits periodic
// spontaneous telemetry.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
)

// Station defaults.
const (
	DefaultYXCount        = 10
	DefaultYCCount        = 10
	DefaultUpdateInterval = time.Second
	DefaultBurst          = 100

	// CommandIOA is the only address that accepts commands.
	CommandIOA = 5000

	// MergeSize is the number of objects per interrogation response ASDU
	// when IOAMerge is set.
	MergeSize = 40

	outboxSize = 4096
)

// Config describes the simulated point set.
type Config struct {
	CommonAddress uint16

	// YXCount single points (M_SP_NA_1) at IOA 1..YXCount.
	YXCount int
	// YCCount scaled measurements (M_ME_NB_1) at IOA 1..YCCount.
	YCCount int

	// IOAMerge packs interrogation responses MergeSize objects per ASDU.
	IOAMerge bool

	// UpdateInterval is the spontaneous update period. Zero disables updates.
	UpdateInterval time.Duration

	// Rate caps delivered ASDUs per second. Zero means unlimited.
	Rate  float64
	Burst int
}

// DefaultConfig returns a ten plus ten point station on common address 1.
func DefaultConfig() Config {
	return Config{
		CommonAddress:  1,
		YXCount:        DefaultYXCount,
		YCCount:        DefaultYCCount,
		UpdateInterval: DefaultUpdateInterval,
		Burst:          DefaultBurst,
	}
}

// link is the state of one connection.
type link struct {
	ctx     context.Context
	cancel  context.CancelFunc
	outbox  chan *domain.ASDU
	address int
	started bool
}

// Station is a simulated outstation. All ASDUs are delivered to the
// registered handler from a single goroutine, in the order they were
// produced.
type Station struct {
	cfg     Config
	logger  ports.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	handler ports.ASDUHandler
	events  ports.ConnectionEventHandler
	current *link
	conns   int
	wg      sync.WaitGroup

	yxValue int32
	ycValue int32
}

// New creates a disconnected station.
func New(cfg Config, logger ports.Logger) (*Station, error) {
	if cfg.YXCount < 0 || cfg.YCCount < 0 {
		return nil, fmt.Errorf("%w: negative point count", domain.ErrInvalidConfig)
	}
	if cfg.YXCount > domain.MaxIOA || cfg.YCCount > domain.MaxIOA {
		return nil, fmt.Errorf("%w: point count exceeds ioa range", domain.ErrInvalidConfig)
	}
	if cfg.Rate < 0 {
		return nil, fmt.Errorf("%w: negative rate", domain.ErrInvalidConfig)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Station{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}, nil
}

// SetASDUHandler registers the receive callback.
func (s *Station) SetASDUHandler(h ports.ASDUHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetEventHandler registers the connection event callback.
func (s *Station) SetEventHandler(h ports.ConnectionEventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = h
}

// Connect opens the simulated link and starts the delivery goroutine.
func (s *Station) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.conns++
	l := &link{
		ctx:     runCtx,
		cancel:  cancel,
		outbox:  make(chan *domain.ASDU, outboxSize),
		address: s.conns,
	}
	s.current = l
	handler := s.handler
	s.wg.Add(1)
	s.mu.Unlock()

	go s.deliver(l, handler)

	s.logger.Info("simulated station connected",
		ports.Int("common_address", int(s.cfg.CommonAddress)),
		ports.Int("yx", s.cfg.YXCount),
		ports.Int("yc", s.cfg.YCCount),
	)
	s.emit(ports.ConnectionOpened)
	return nil
}

// StartDataTransfer confirms STARTDT and starts spontaneous updates.
func (s *Station) StartDataTransfer(ctx context.Context) error {
	s.mu.Lock()
	l := s.current
	if l == nil {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	startUpdates := !l.started && s.cfg.UpdateInterval > 0
	l.started = true
	if startUpdates {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.emit(ports.StartDTConReceived)
	if startUpdates {
		go s.updateLoop(l)
	}
	return nil
}

// SendInterrogation answers a station interrogation: ActCon, every point
// with COT interrogated-by-station, then ActTerm.
func (s *Station) SendInterrogation(ctx context.Context, commonAddress uint16) error {
	l, err := s.link()
	if err != nil {
		return err
	}

	if commonAddress != s.cfg.CommonAddress {
		return s.push(ctx, l, interrogationReply(domain.CauseUnknownCA, commonAddress, true))
	}

	if err := s.push(ctx, l, interrogationReply(domain.CauseActivationCon, commonAddress, false)); err != nil {
		return err
	}
	yx, yc := s.values()
	for _, a := range s.points(domain.M_SP_NA_1, domain.CauseInterrogatedByStation, s.cfg.YXCount, yx, s.cfg.IOAMerge) {
		if err := s.push(ctx, l, a); err != nil {
			return err
		}
	}
	for _, a := range s.points(domain.M_ME_NB_1, domain.CauseInterrogatedByStation, s.cfg.YCCount, yc, s.cfg.IOAMerge) {
		if err := s.push(ctx, l, a); err != nil {
			return err
		}
	}
	return s.push(ctx, l, interrogationReply(domain.CauseActivationTermination, commonAddress, false))
}

// SendTestFrame confirms a test command.
func (s *Station) SendTestFrame(ctx context.Context, commonAddress uint16) error {
	l, err := s.link()
	if err != nil {
		return err
	}
	a := domain.NewASDU(domain.C_TS_TA_1, domain.CauseActivationCon, commonAddress)
	a.Time = time.Now()
	a.Add(0, 0, 0)
	return s.push(ctx, l, a)
}

// SendCommand answers a control ASDU. Activations on CommandIOA are
// confirmed, other addresses get a negative unknown-IOA reply and any
// other cause gets a negative unknown-COT reply.
func (s *Station) SendCommand(ctx context.Context, cmd *domain.ASDU) error {
	l, err := s.link()
	if err != nil {
		return err
	}
	if cmd == nil || len(cmd.Objects) == 0 {
		return fmt.Errorf("%w: empty command", domain.ErrInvalidCommand)
	}

	reply := cmd.Clone()
	obj := cmd.Objects[0]
	switch {
	case cmd.COT != domain.CauseActivation:
		reply.COT = domain.CauseUnknownCOT
		reply.Negative = true
	case obj.IOA != CommandIOA:
		reply.COT = domain.CauseUnknownIOA
		reply.Negative = true
	default:
		reply.COT = domain.CauseActivationCon
	}

	s.logger.Debug("simulated command",
		ports.String("type", cmd.Type.String()),
		ports.Uint32("ioa", obj.IOA),
		ports.Int64("value", int64(obj.Value)),
		ports.Bool("select", obj.IsSelect()),
		ports.String("reply", reply.COT.String()),
	)
	return s.push(ctx, l, reply)
}

// Disconnect drops the link as if the peer had gone away.
func (s *Station) Disconnect() {
	if s.shutdown() {
		s.emit(ports.ConnectionClosed)
	}
}

// Close terminates the link. It is safe to call more than once.
func (s *Station) Close() error {
	if s.shutdown() {
		s.logger.Info("simulated station closed")
		s.emit(ports.ConnectionClosed)
	}
	return nil
}

// Connections returns how many times Connect succeeded.
func (s *Station) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Station) shutdown() bool {
	s.mu.Lock()
	l := s.current
	s.current = nil
	s.mu.Unlock()
	if l == nil {
		return false
	}
	l.cancel()
	s.wg.Wait()
	return true
}

func (s *Station) link() (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, domain.ErrNotConnected
	}
	return s.current, nil
}

func (s *Station) emit(ev ports.ConnectionEvent) {
	s.mu.Lock()
	h := s.events
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// push queues a for delivery. Ownership passes to the station.
func (s *Station) push(ctx context.Context, l *link, a *domain.ASDU) error {
	select {
	case l.outbox <- a:
		return nil
	case <-ctx.Done():
		a.Release()
		return ctx.Err()
	case <-l.ctx.Done():
		a.Release()
		return domain.ErrNotConnected
	}
}

// deliver hands queued ASDUs to the handler, paced by the limiter.
func (s *Station) deliver(l *link, handler ports.ASDUHandler) {
	defer s.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			for {
				select {
				case a := <-l.outbox:
					a.Release()
				default:
					return
				}
			}
		case a := <-l.outbox:
			if err := s.limiter.Wait(l.ctx); err != nil {
				a.Release()
				continue
			}
			if handler != nil {
				handler.HandleASDU(l.address, a)
			}
			a.Release()
		}
	}
}

// updateLoop sends one spontaneous ASDU per point each interval: scaled
// values count up, single points toggle.
func (s *Station) updateLoop(l *link) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
		}

		yx, yc := s.advance()
		batch := s.points(domain.M_ME_NB_1, domain.CauseSpontaneous, s.cfg.YCCount, yc, false)
		batch = append(batch, s.points(domain.M_SP_NA_1, domain.CauseSpontaneous, s.cfg.YXCount, yx, false)...)
		for i, a := range batch {
			if err := s.push(l.ctx, l, a); err != nil {
				for _, rest := range batch[i+1:] {
					rest.Release()
				}
				return
			}
		}
	}
}

// advance returns the current values and steps them for the next cycle.
func (s *Station) advance() (yx, yc int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	yx, yc = s.yxValue, s.ycValue
	s.ycValue = int32(int16(s.ycValue + 1))
	s.yxValue ^= 1
	return yx, yc
}

func (s *Station) values() (yx, yc int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yxValue, s.ycValue
}

// points builds ASDUs for IOA 1..count. With merge set, up to MergeSize
// objects share an ASDU; otherwise each point gets its own.
func (s *Station) points(typ domain.TypeID, cot domain.CauseOfTransmission, count int, value int32, merge bool) []*domain.ASDU {
	if count == 0 {
		return nil
	}
	per := 1
	if merge {
		per = MergeSize
	}

	out := make([]*domain.ASDU, 0, (count+per-1)/per)
	var cur *domain.ASDU
	for ioa := 1; ioa <= count; ioa++ {
		if cur == nil || len(cur.Objects) == per {
			cur = domain.NewASDU(typ, cot, s.cfg.CommonAddress)
			out = append(out, cur)
		}
		cur.Add(uint32(ioa), value, 0)
	}
	return out
}

func interrogationReply(cot domain.CauseOfTransmission, commonAddress uint16, negative bool) *domain.ASDU {
	a := domain.NewASDU(domain.C_IC_NA_1, cot, commonAddress)
	a.Negative = negative
	a.Add(0, domain.QOIStation, 0)
	return a
}

var _ ports.Connection = (*Station)(nil)
