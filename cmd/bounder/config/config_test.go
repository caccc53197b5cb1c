package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/bounder/cmd/bounder/config"
)

func execute(args ...string) (string, error) {
	cmd := configcmder.NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return ansi.Strip(out.String()), err
}

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bounder-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .bounder dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".bounder"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			out, err := execute("set", "source.url", "http://camera.local/video")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Set source.url = http://camera.local/video"))

			info, err := os.Stat(filepath.Join(tmpDir, ".bounder", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("masks the password in credentials", func() {
			out, err := execute("set", "source.user", "admin:secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("admin:xxxxx"))
			Expect(out).NotTo(ContainSubstring("secret"))
		})

		It("rejects unknown keys", func() {
			_, err := execute("set", "invalid_key", "value")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("requires exactly two arguments", func() {
			_, err := execute("set", "source.url")
			Expect(err).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			_, err := execute("set")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid queue sizes", func() {
			_, err := execute("set", "relay.queue_size", "not-a-number")
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-http source URLs", func() {
			_, err := execute("set", "source.url", "rtsp://camera.local/stream")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			_, err := execute("set", "server.path", "/cam.mjpg")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("get", "server.path")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Config file:"))
			Expect(out).To(ContainSubstring("/cam.mjpg"))
		})

		It("reports unset keys", func() {
			out, err := execute("get", "source.url")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			_, err := execute("get", "invalid_key")
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			_, err := execute("get")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults grouped by section before anything is saved", func() {
			out, err := execute("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("[server]"))
			Expect(out).To(ContainSubstring(`  path   = "/video.mjpg"`))
			Expect(out).To(ContainSubstring(`  retry_delay = "3s"`))
			Expect(out).To(ContainSubstring("  url  = <not set>"))
		})

		It("shows saved values with credentials masked", func() {
			_, err := execute("set", "source.user", "admin:secret")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Using config file:"))
			Expect(out).To(ContainSubstring(`"admin:xxxxx"`))
			Expect(out).NotTo(ContainSubstring("secret"))
		})

		It("rejects any arguments", func() {
			_, err := execute("list", "extra")
			Expect(err).To(HaveOccurred())
		})
	})
})
