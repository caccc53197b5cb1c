package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bounder/pkg/eventstream"
	"github.com/papercomputeco/bounder/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("returns ErrNilEvent for nil events", func() {
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(p.Discarded()).To(BeZero())
	})

	It("counts discarded events", func() {
		event := eventstream.NewEvent(eventstream.EventTypeConsumerAttached, eventstream.EventSource{Listen: ":8080"})
		Expect(p.Publish(context.Background(), event)).To(Succeed())
		Expect(p.Publish(context.Background(), event)).To(Succeed())
		Expect(p.Discarded()).To(Equal(uint64(2)))
	})

	It("rejects events after Close", func() {
		Expect(p.Close()).To(Succeed())
		Expect(p.Close()).To(Succeed())

		err := p.Publish(context.Background(), &eventstream.StreamEvent{})
		Expect(err).To(MatchError(eventstream.ErrPublisherClosed))
	})
})
