// Package dispatch отправляет речевые сегменты на распознавание и доставляет
// результаты в sidecar-документы в порядке появления сегментов.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"everec/internal/archive"
	"everec/internal/segmenter"
	"everec/internal/speech"
)

// Appender принимает результаты распознавания. Реализуется архиватором.
type Appender interface {
	AppendTranscript(sinkID string, e archive.Entry) error
}

// Config - настройки диспетчера.
type Config struct {
	// Workers - число параллельных распознаваний. Ноль означает один.
	Workers int
	// MaxRetries - число повторов после первой неудачи.
	MaxRetries int
	// Backoff - пауза между повторами.
	Backoff time.Duration
	// Language - язык распознавания ("auto" для автоопределения).
	Language string
}

type job struct {
	id  uuid.UUID
	seg segmenter.Segment
}

// reorder - буфер упорядочивания для одного архивного файла. Результаты
// могут завершаться не по порядку (разные длины сегментов), но в sidecar
// попадают строго по Seq.
type reorder struct {
	next    int
	pending map[int]archive.Entry
}

// Dispatcher владеет очередью сегментов и пулом воркеров. Submit никогда
// не блокирует цикл захвата: очередь не ограничена, глубина видна через
// QueueDepth.
type Dispatcher struct {
	cfg Config
	rec speech.Recognizer
	out Appender
	log logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []job
	inflight int
	draining bool
	closed   bool

	omu    sync.Mutex
	orders map[string]*reorder
}

// New создаёт диспетчер и запускает воркеров.
func New(cfg Config, rec speech.Recognizer, out Appender, log logrus.FieldLogger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		rec:    rec,
		out:    out,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		orders: make(map[string]*reorder),
	}
	d.cond = sync.NewCond(&d.mu)
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit ставит сегмент в очередь распознавания. Не блокирует.
func (d *Dispatcher) Submit(seg segmenter.Segment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, job{id: uuid.New(), seg: seg})
	d.cond.Signal()
}

// QueueDepth возвращает число сегментов в очереди (без учёта выполняемых).
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Drain дожидается обработки очереди не дольше timeout. По истечении
// срока оставшиеся сегменты помечаются failed, их записи всё равно
// доставляются в sidecar в порядке очереди.
func (d *Dispatcher) Drain(timeout time.Duration) {
	d.mu.Lock()
	d.draining = true
	d.cond.Broadcast()
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		empty := len(d.queue) == 0 && d.inflight == 0
		d.mu.Unlock()
		if empty || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Остановить воркеров и отказать оставшимся сегментам.
	d.cancel()
	d.mu.Lock()
	d.closed = true
	rest := d.queue
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()
	d.wg.Wait()

	for _, j := range rest {
		d.log.Warnf("Сегмент %s не распознан: очередь не успела обработаться", j.id)
		d.deliver(j.seg, archive.Entry{
			Start:  j.seg.Start,
			End:    j.seg.End,
			Status: archive.EntryFailed,
		})
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		j, ok := d.take()
		if !ok {
			return
		}
		entry := d.process(j)
		d.deliver(j.seg, entry)
		d.mu.Lock()
		d.inflight--
		d.mu.Unlock()
	}
}

// take снимает сегмент с очереди, блокируясь пока она пуста.
func (d *Dispatcher) take() (job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) == 0 {
		if d.closed || (d.draining && d.inflight == 0) {
			return job{}, false
		}
		if d.ctx.Err() != nil {
			return job{}, false
		}
		d.cond.Wait()
	}
	if d.closed || d.ctx.Err() != nil {
		return job{}, false
	}
	j := d.queue[0]
	d.queue = d.queue[1:]
	d.inflight++
	return j, true
}

// process распознаёт сегмент с повторами. Любой исход даёт запись для
// sidecar: ok, no_text или failed.
func (d *Dispatcher) process(j job) archive.Entry {
	entry := archive.Entry{Start: j.seg.Start, End: j.seg.End}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.ctx.Done():
				entry.Status = archive.EntryFailed
				return entry
			case <-time.After(d.cfg.Backoff):
			}
		}

		res, err := d.rec.Transcribe(d.ctx, j.seg.Samples, d.cfg.Language)
		if err == nil {
			entry.Text = res.Text
			entry.Language = res.Language
			if res.Text == "" {
				entry.Status = archive.EntryNoText
			} else {
				entry.Status = archive.EntryOK
			}
			return entry
		}
		lastErr = err
		if speech.IsPermanent(err) || d.ctx.Err() != nil {
			break
		}
		d.log.Warnf("Распознавание сегмента %s не удалось (попытка %d/%d): %v",
			j.id, attempt+1, d.cfg.MaxRetries+1, err)
	}

	d.log.Errorf("Сегмент %s не распознан: %v", j.id, lastErr)
	entry.Status = archive.EntryFailed
	return entry
}

// deliver проводит запись через буфер упорядочивания своего архивного
// файла: в sidecar записи попадают строго в порядке Seq.
func (d *Dispatcher) deliver(seg segmenter.Segment, e archive.Entry) {
	d.omu.Lock()
	defer d.omu.Unlock()

	ord := d.orders[seg.Sink]
	if ord == nil {
		ord = &reorder{pending: make(map[int]archive.Entry)}
		d.orders[seg.Sink] = ord
	}
	ord.pending[seg.Seq] = e

	for {
		next, ok := ord.pending[ord.next]
		if !ok {
			return
		}
		delete(ord.pending, ord.next)
		ord.next++
		if err := d.out.AppendTranscript(seg.Sink, next); err != nil {
			d.log.Errorf("Ошибка записи результата в sidecar %s: %v", seg.Sink, err)
		}
	}
}
