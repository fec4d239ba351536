package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p eventstream.Publisher = nop.NewPublisher()

	It("returns ErrNilEnvelope for nil envelopes", func() {
		err := p.Publish(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilEnvelope))
	})

	It("accepts envelopes", func() {
		err := p.Publish(context.Background(), &eventstream.Envelope{Kind: "end"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
