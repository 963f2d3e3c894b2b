// Command loadtest drives a running anonbot control API with weighted
// scenarios and checks the counters it reports afterwards.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
)

type config struct {
	base     string
	workers  int
	duration time.Duration
	users    int
	admin    int64
}

type client struct {
	cfg  config
	http *http.Client

	forwarded atomic.Int64
	admitted  atomic.Int64
}

// outcome is one request as seen by a scenario. ok is decided by the
// scenario because 403 and 429 are normal answers for some endpoints.
type outcome struct {
	name    string
	status  int
	elapsed time.Duration
	ok      bool
}

type scenario struct {
	name   string
	weight int
	run    func(c *client, rng *rand.Rand) outcome
}

type mix []scenario

func (m mix) pick(rng *rand.Rand) scenario {
	total := 0
	for _, s := range m {
		total += s.weight
	}
	n := rng.Intn(total)
	for _, s := range m {
		if n < s.weight {
			return s
		}
		n -= s.weight
	}
	return m[len(m)-1]
}

func main() {
	var cfg config
	flag.StringVar(&cfg.base, "addr", "http://127.0.0.1:8090", "control API base URL")
	flag.IntVar(&cfg.workers, "workers", 32, "concurrent workers per phase")
	flag.DurationVar(&cfg.duration, "phase", 8*time.Second, "duration of each phase")
	flag.IntVar(&cfg.users, "users", 1500, "distinct user ids to send as")
	flag.Int64Var(&cfg.admin, "admin-chat", 1, "chat id used for forwarded copies")
	flag.Parse()

	c := &client{cfg: cfg, http: &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: cfg.workers * 2},
	}}

	ctx := context.Background()
	if err := c.waitReady(ctx, 6*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, "server not ready:", err)
		os.Exit(1)
	}

	phases := []struct {
		title string
		mix   mix
	}{
		{"inbound only", mix{{"message", 1, sendMessage}}},
		{"reply traffic", mix{
			{"message", 5, sendMessage},
			{"forward", 3, recordForward},
			{"reply-route", 2, lookupReply},
		}},
		{"admin reads", mix{
			{"message", 6, sendMessage},
			{"stats", 1, getter("/stats")},
			{"history", 1, getter("/history?limit=50")},
			{"user", 1, lookupUser},
			{"recipients", 1, getter("/recipients")},
		}},
		{"saves under load", mix{
			{"message", 95, sendMessage},
			{"save", 5, requestSave},
		}},
	}

	failed := false
	for i, p := range phases {
		fmt.Printf("\n[%d/%d] %s for %s with %d workers\n", i+1, len(phases), p.title, cfg.duration, cfg.workers)
		rec := c.runPhase(ctx, p.mix)
		rec.print(os.Stdout, cfg.duration)
		if rec.failures() > 0 {
			failed = true
		}
	}

	if err := c.verify(); err != nil {
		fmt.Fprintln(os.Stderr, "verification:", err)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

func (c *client) waitReady(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()
	for {
		if o := c.do(http.MethodGet, "/health", nil); o.status == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (c *client) runPhase(ctx context.Context, m mix) *recorder {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.duration)
	defer cancel()

	rec := newRecorder()
	var wg sync.WaitGroup
	for w := 0; w < c.cfg.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				rec.add(m.pick(rng).run(c, rng))
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()
	return rec
}

// verify checks that the admitted messages counted here show up in the
// service's own totals. The server may have been warm, so only a lower
// bound is asserted.
func (c *client) verify() error {
	var stats struct {
		TotalMessages int64 `json:"total_messages"`
		ReplyRoutes   int64 `json:"reply_routes"`
	}
	if err := c.getJSON("/stats", &stats); err != nil {
		return err
	}
	if stats.TotalMessages < c.admitted.Load() {
		return fmt.Errorf("total_messages %d below %d admitted by this run", stats.TotalMessages, c.admitted.Load())
	}

	var hist struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := c.getJSON("/history", &hist); err != nil {
		return err
	}
	if len(hist.Entries) > 1000 {
		return fmt.Errorf("history returned %d entries, want at most 1000", len(hist.Entries))
	}
	fmt.Printf("\nadmitted %d | total_messages %d | reply_routes %d | history %d\n",
		c.admitted.Load(), stats.TotalMessages, stats.ReplyRoutes, len(hist.Entries))
	return nil
}

func (c *client) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.cfg.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) do(method, path string, body any) outcome {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return outcome{}
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.cfg.base+path, payload)
	if err != nil {
		return outcome{}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return outcome{elapsed: elapsed}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return outcome{status: resp.StatusCode, elapsed: elapsed}
}

var messageKinds = []string{"text", "text", "text", "photo", "voice", "sticker"}

func sendMessage(c *client, rng *rand.Rand) outcome {
	id := rng.Intn(c.cfg.users) + 1
	kind := messageKinds[rng.Intn(len(messageKinds))]
	body := map[string]any{
		"user_id":      id,
		"display_name": fmt.Sprintf("user%d", id),
		"message_type": kind,
	}
	if kind == "text" {
		body["text"] = strings.Repeat("lorem ", rng.Intn(40)+1)
	}
	o := c.do(http.MethodPost, "/message", body)
	o.name = "POST /message"
	switch o.status {
	case http.StatusOK:
		c.admitted.Inc()
		o.ok = true
	case http.StatusTooManyRequests, http.StatusForbidden:
		o.ok = true
	}
	return o
}

func recordForward(c *client, rng *rand.Rand) outcome {
	o := c.do(http.MethodPost, "/forward", map[string]any{
		"chat_id":              c.cfg.admin,
		"forwarded_message_id": c.forwarded.Inc(),
		"user_id":              rng.Intn(c.cfg.users) + 1,
		"user_message_id":      rng.Intn(1<<20) + 1,
	})
	o.name = "POST /forward"
	o.ok = o.status == http.StatusNoContent
	return o
}

func lookupReply(c *client, rng *rand.Rand) outcome {
	msg := int64(1)
	if n := c.forwarded.Load(); n > 0 {
		msg = rng.Int63n(n) + 1
	}
	o := c.do(http.MethodGet, fmt.Sprintf("/reply-route?chat=%d&msg=%d", c.cfg.admin, msg), nil)
	o.name = "GET /reply-route"
	// routes can be evicted from the cache, and blocked senders answer 403
	o.ok = o.status == http.StatusOK || o.status == http.StatusNotFound || o.status == http.StatusForbidden
	return o
}

func lookupUser(c *client, rng *rand.Rand) outcome {
	o := c.do(http.MethodGet, fmt.Sprintf("/user?id=%d", rng.Intn(c.cfg.users)+1), nil)
	o.name = "GET /user"
	o.ok = o.status == http.StatusOK || o.status == http.StatusNotFound
	return o
}

func requestSave(c *client, _ *rand.Rand) outcome {
	o := c.do(http.MethodPost, "/save", nil)
	o.name = "POST /save"
	o.ok = o.status == http.StatusAccepted
	return o
}

func getter(path string) func(*client, *rand.Rand) outcome {
	name := "GET " + strings.SplitN(path, "?", 2)[0]
	return func(c *client, _ *rand.Rand) outcome {
		o := c.do(http.MethodGet, path, nil)
		o.name = name
		o.ok = o.status == http.StatusOK
		return o
	}
}

// bucket upper bounds; anything slower lands in the last bucket.
var bounds = []time.Duration{
	250 * time.Microsecond, 500 * time.Microsecond,
	time.Millisecond, 2 * time.Millisecond, 5 * time.Millisecond,
	10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond,
	100 * time.Millisecond, 250 * time.Millisecond, time.Second,
}

type series struct {
	count    int64
	failed   int64
	total    time.Duration
	max      time.Duration
	buckets  []int64
	statuses map[int]int64
}

type recorder struct {
	mu     sync.Mutex
	series map[string]*series
}

func newRecorder() *recorder {
	return &recorder{series: make(map[string]*series)}
}

func (r *recorder) add(o outcome) {
	i := sort.Search(len(bounds), func(i int) bool { return o.elapsed <= bounds[i] })

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[o.name]
	if !ok {
		s = &series{buckets: make([]int64, len(bounds)+1), statuses: make(map[int]int64)}
		r.series[o.name] = s
	}
	s.count++
	s.total += o.elapsed
	s.max = max(s.max, o.elapsed)
	s.buckets[i]++
	s.statuses[o.status]++
	if !o.ok {
		s.failed++
	}
}

func (r *recorder) failures() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.series {
		n += s.failed
	}
	return n
}

// quantile returns the upper bound of the bucket holding the q-th request.
func (s *series) quantile(q float64) time.Duration {
	want := int64(float64(s.count) * q)
	var seen int64
	for i, n := range s.buckets {
		seen += n
		if seen > want {
			if i < len(bounds) {
				return bounds[i]
			}
			return s.max
		}
	}
	return s.max
}

func (r *recorder) print(w io.Writer, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.series))
	for n := range r.series {
		names = append(names, n)
	}
	sort.Strings(names)

	var total, failed int64
	fmt.Fprintf(w, "  %-18s %7s %6s %9s %9s %9s %9s  %s\n", "endpoint", "reqs", "fail", "mean", "p50<=", "p99<=", "max", "statuses")
	for _, n := range names {
		s := r.series[n]
		total += s.count
		failed += s.failed
		mean := s.total / time.Duration(max(s.count, 1))
		fmt.Fprintf(w, "  %-18s %7d %6d %9s %9s %9s %9s  %s\n", n, s.count, s.failed,
			mean.Round(time.Microsecond), s.quantile(0.5), s.quantile(0.99), s.max.Round(time.Microsecond),
			statusLine(s.statuses))
	}
	fmt.Fprintf(w, "  %d requests, %d failed, %.0f req/s\n", total, failed, float64(total)/d.Seconds())
}

func statusLine(m map[int]int64) string {
	codes := make([]int, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	var b strings.Builder
	for i, code := range codes {
		if i > 0 {
			b.WriteByte(' ')
		}
		if code == 0 {
			fmt.Fprintf(&b, "neterr=%d", m[code])
			continue
		}
		fmt.Fprintf(&b, "%d=%d", code, m[code])
	}
	return b.String()
}
