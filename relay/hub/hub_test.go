package hub_test

import (
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bounder/relay/boundary"
	"github.com/papercomputeco/bounder/relay/hub"
)

type detachEvent struct {
	id     string
	reason hub.DetachReason
}

// recordingObserver captures lifecycle callbacks for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	attached []string
	detached []detachEvent
}

func (o *recordingObserver) ConsumerAttached(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached = append(o.attached, id)
}

func (o *recordingObserver) ConsumerDetached(id string, reason hub.DetachReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detached = append(o.detached, detachEvent{id: id, reason: reason})
}

func (o *recordingObserver) Detached() []detachEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]detachEvent(nil), o.detached...)
}

func frameStart(s string) boundary.Segment {
	return boundary.Segment{Data: []byte(s), FrameStart: true}
}

func continuation(s string) boundary.Segment {
	return boundary.Segment{Data: []byte(s)}
}

// drain returns everything currently queued on ch without blocking.
func drain(ch <-chan []byte) []string {
	var out []string
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(b))
		default:
			return out
		}
	}
}

var _ = Describe("Hub", func() {
	var (
		h   *hub.Hub
		obs *recordingObserver
	)

	BeforeEach(func() {
		obs = &recordingObserver{}
		h = hub.New(hub.WithQueueSize(4), hub.WithObserver(obs))
	})

	Describe("Attach", func() {
		It("reports 502 with no headers before any upstream response", func() {
			sub := h.Attach()
			Expect(sub.ID).NotTo(BeEmpty())
			Expect(sub.Status).To(Equal(http.StatusBadGateway))
			Expect(sub.Header).To(BeEmpty())
			Expect(h.Len()).To(Equal(1))
		})

		It("snapshots the most recent stream state", func() {
			h.UpdateStreamState(http.StatusOK, http.Header{
				"Content-Type":   {"multipart/x-mixed-replace; boundary=X"},
				"Content-Length": {"1234"},
				"Connection":     {"close"},
				"Cache-Control":  {"no-cache"},
			})

			sub := h.Attach()
			Expect(sub.Status).To(Equal(http.StatusOK))
			Expect(sub.Header.Get("Content-Type")).To(Equal("multipart/x-mixed-replace; boundary=X"))
			Expect(sub.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(sub.Header).NotTo(HaveKey("Content-Length"))
			Expect(sub.Header).NotTo(HaveKey("Connection"))
		})

		It("hands out header copies that later updates do not touch", func() {
			h.UpdateStreamState(http.StatusOK, http.Header{"Content-Type": {"a"}})
			sub := h.Attach()
			h.UpdateStreamState(http.StatusServiceUnavailable, http.Header{"Content-Type": {"b"}})

			Expect(sub.Status).To(Equal(http.StatusOK))
			Expect(sub.Header.Get("Content-Type")).To(Equal("a"))
			Expect(h.Snapshot().Status).To(Equal(http.StatusServiceUnavailable))
		})

		It("gives each consumer a distinct id and notifies the observer", func() {
			a := h.Attach()
			b := h.Attach()
			Expect(a.ID).NotTo(Equal(b.ID))
			Expect(obs.attached).To(Equal([]string{a.ID, b.ID}))
		})
	})

	Describe("Broadcast", func() {
		It("sends nothing until the first frame-start segment", func() {
			sub := h.Attach()

			h.Broadcast(continuation("mid-frame"))
			Expect(drain(sub.C)).To(BeEmpty())

			h.Broadcast(frameStart("--X\r\n"))
			h.Broadcast(continuation("FRAME"))
			Expect(drain(sub.C)).To(Equal([]string{"--X\r\n", "FRAME"}))
		})

		It("starts late joiners at the next frame boundary only", func() {
			early := h.Attach()
			h.Broadcast(frameStart("--X\r\n"))
			h.Broadcast(continuation("ONE"))
			got := drain(early.C)

			late := h.Attach()
			h.Broadcast(continuation("MORE-ONE"))
			h.Broadcast(frameStart("--X\r\n"))
			got = append(got, drain(early.C)...)
			h.Broadcast(continuation("TWO"))
			got = append(got, drain(early.C)...)

			Expect(got).To(Equal([]string{"--X\r\n", "ONE", "MORE-ONE", "--X\r\n", "TWO"}))
			Expect(drain(late.C)).To(Equal([]string{"--X\r\n", "TWO"}))
			Expect(h.Len()).To(Equal(2))
		})

		It("is a no-op without consumers", func() {
			Expect(func() { h.Broadcast(frameStart("--X\r\n")) }).NotTo(Panic())
			Expect(h.Len()).To(BeZero())
		})

		It("evicts a consumer whose queue is full without affecting others", func() {
			slow := h.Attach()
			fast := h.Attach()

			var fastGot []string
			h.Broadcast(frameStart("s0"))
			for i := 1; i < 8; i++ {
				fastGot = append(fastGot, drain(fast.C)...)
				h.Broadcast(continuation("c"))
			}
			fastGot = append(fastGot, drain(fast.C)...)

			// slow never drained: 4 fit, the 5th evicts it
			Expect(h.Len()).To(Equal(1))
			Expect(drain(slow.C)).To(HaveLen(4))
			Eventually(slow.C).Should(BeClosed())

			Expect(fastGot).To(HaveLen(8))
			Expect(fastGot[0]).To(Equal("s0"))

			Expect(obs.Detached()).To(ConsistOf(detachEvent{id: slow.ID, reason: hub.DetachEvicted}))
		})

		It("keeps an evicted consumer out for good", func() {
			sub := h.Attach()
			h.Broadcast(frameStart("f"))
			for range 4 {
				h.Broadcast(continuation("c"))
			}
			Expect(h.Len()).To(BeZero())

			Expect(h.Detach(sub.ID)).To(BeFalse())
			h.Broadcast(frameStart("f"))
			Expect(h.Len()).To(BeZero())
		})

		It("preserves attach order for the remaining consumers after an eviction", func() {
			subs := []*hub.Subscription{h.Attach(), h.Attach(), h.Attach()}
			h.Broadcast(frameStart("f"))

			// fill only the middle consumer
			for _, s := range []*hub.Subscription{subs[0], subs[2]} {
				drain(s.C)
			}
			for range 3 {
				h.Broadcast(continuation("c"))
				drain(subs[0].C)
				drain(subs[2].C)
			}
			h.Broadcast(continuation("overflow"))

			Expect(h.Len()).To(Equal(2))
			Expect(drain(subs[0].C)).To(Equal([]string{"overflow"}))
			Expect(drain(subs[2].C)).To(Equal([]string{"overflow"}))
		})
	})

	Describe("UpdateStreamState", func() {
		It("holds started consumers until the new stream's first frame-start", func() {
			sub := h.Attach()
			h.Broadcast(frameStart("--X\r\n"))
			h.Broadcast(continuation("OLD"))
			Expect(drain(sub.C)).To(Equal([]string{"--X\r\n", "OLD"}))

			h.UpdateStreamState(http.StatusOK, http.Header{})
			h.Broadcast(continuation("garbage-before-boundary"))
			Expect(drain(sub.C)).To(BeEmpty())

			h.Broadcast(frameStart("--X\r\n"))
			h.Broadcast(continuation("NEW"))
			Expect(drain(sub.C)).To(Equal([]string{"--X\r\n", "NEW"}))
		})
	})

	Describe("Detach", func() {
		It("closes the queue and notifies once", func() {
			sub := h.Attach()
			Expect(h.Detach(sub.ID)).To(BeTrue())
			Expect(sub.C).To(BeClosed())
			Expect(h.Detach(sub.ID)).To(BeFalse())
			Expect(obs.Detached()).To(Equal([]detachEvent{{id: sub.ID, reason: hub.DetachClosed}}))
		})
	})

	Describe("Close", func() {
		It("detaches everyone and hands out closed subscriptions afterwards", func() {
			a := h.Attach()
			b := h.Attach()
			h.Close()

			Expect(a.C).To(BeClosed())
			Expect(b.C).To(BeClosed())
			Expect(h.Len()).To(BeZero())

			late := h.Attach()
			Expect(late.C).To(BeClosed())
			Expect(h.Len()).To(BeZero())

			Expect(obs.Detached()).To(ConsistOf(
				detachEvent{id: a.ID, reason: hub.DetachShutdown},
				detachEvent{id: b.ID, reason: hub.DetachShutdown},
			))
		})

		It("can be called twice", func() {
			h.Close()
			Expect(h.Close).NotTo(Panic())
		})
	})

	Describe("concurrent use", func() {
		It("keeps the stream state consistent under concurrent attach and update", func() {
			var wg sync.WaitGroup
			wg.Add(2)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := range 200 {
					status := http.StatusOK
					if i%2 == 1 {
						status = http.StatusAccepted
					}
					h.UpdateStreamState(status, http.Header{"X-Status": {http.StatusText(status)}})
					h.Broadcast(frameStart("f"))
				}
			}()

			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for range 200 {
					sub := h.Attach()
					if sub.Status != http.StatusBadGateway {
						Expect(sub.Header.Get("X-Status")).To(Equal(http.StatusText(sub.Status)))
					}
					h.Detach(sub.ID)
				}
			}()

			wg.Wait()
			Expect(h.Len()).To(BeZero())
		})
	})
})
