package bouncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bouncmder "github.com/papercomputeco/bounder/cmd/bounder"
)

var _ = Describe("NewBounderCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := bouncmder.NewBounderCmd()
		Expect(cmd.Use).To(Equal("bounder"))
	})

	It("has serve, status, config, and version subcommands", func() {
		cmd := bouncmder.NewBounderCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("serve", "status", "config", "version"))
	})

	It("registers the global flags", func() {
		cmd := bouncmder.NewBounderCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().ShorthandLookup("d")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("accepts the relay flags without the serve subcommand", func() {
		cmd := bouncmder.NewBounderCmd()
		for _, name := range []string{"input", "user", "output", "bind", "queue-size", "retry-delay", "events-brokers"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().ShorthandLookup("i").Name).To(Equal("input"))
		Expect(cmd.Flags().ShorthandLookup("o").Name).To(Equal("output"))
	})

	It("requires an input URL when run without a subcommand", func() {
		cmd := bouncmder.NewBounderCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"--config-dir", GinkgoT().TempDir()})

		Expect(cmd.Execute()).To(MatchError("source URL is required (--input)"))
	})

	It("prints the version", func() {
		cmd := bouncmder.NewBounderCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version:"))
	})
})
