package appconfig_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lisanmuaddib/allowance-go/internal/appconfig"
	"github.com/lisanmuaddib/allowance-go/pkg/chains"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var envKeys = []string{
	"LISTEN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "DEFAULT_CHAIN_ID",
	"PRIVATE_KEY", "KEYSTORE_PATH", "KEYSTORE_PASSWORD",
	"APPROVE_RATE_PER_MINUTE", "WATCH_RECEIPTS", "DIAL_RETRIES",
	"DIAL_RETRY_DELAY", "BASE_FEE_MULTIPLIER",
}

// clearEnv unsets every variable the config reads; Setenv restores them after the test.
func clearEnv() {
	for _, key := range envKeys {
		GinkgoT().Setenv(key, "")
		Expect(os.Unsetenv(key)).To(Succeed())
	}
}

var _ = Describe("Config", func() {
	BeforeEach(clearEnv)

	It("should fill defaults", func() {
		config, err := appconfig.FromEnv()
		Expect(err).NotTo(HaveOccurred())
		Expect(config.ListenAddr).To(Equal(":8080"))
		Expect(config.LogLevel).To(Equal("info"))
		Expect(config.LogFormat).To(Equal("json"))
		Expect(config.DefaultChainID).To(Equal(chains.ArbitrumOne))
		Expect(config.DialRetries).To(Equal(3))
		Expect(config.DialRetryDelay).To(Equal(time.Second))
		Expect(config.ApprovePerMinute).To(Equal(6))
		Expect(config.WatchReceipts).To(BeFalse())
		Expect(config.BaseFeeMultiplier).To(Equal(1.2))
		Expect(config.HasSigner()).To(BeFalse())
	})

	It("should read every variable", func() {
		GinkgoT().Setenv("LISTEN_ADDR", "127.0.0.1:9000")
		GinkgoT().Setenv("LOG_FORMAT", "color")
		GinkgoT().Setenv("DEFAULT_CHAIN_ID", "137")
		GinkgoT().Setenv("PRIVATE_KEY", "0xabc")
		GinkgoT().Setenv("APPROVE_RATE_PER_MINUTE", "0")
		GinkgoT().Setenv("WATCH_RECEIPTS", "true")
		GinkgoT().Setenv("DIAL_RETRIES", "0")
		GinkgoT().Setenv("DIAL_RETRY_DELAY", "250ms")
		GinkgoT().Setenv("BASE_FEE_MULTIPLIER", "1.5")
		GinkgoT().Setenv("RPC_URL_137", "https://polygon.example")

		config, err := appconfig.FromEnv()
		Expect(err).NotTo(HaveOccurred())
		Expect(config.ListenAddr).To(Equal("127.0.0.1:9000"))
		Expect(config.LogFormat).To(Equal("color"))
		Expect(config.DefaultChainID).To(Equal(chains.PolygonMainnet))
		Expect(config.HasSigner()).To(BeTrue())
		Expect(config.ApprovePerMinute).To(BeZero())
		Expect(config.WatchReceipts).To(BeTrue())
		Expect(config.DialRetries).To(BeZero())
		Expect(config.DialRetryDelay).To(Equal(250 * time.Millisecond))
		Expect(config.BaseFeeMultiplier).To(Equal(1.5))
		Expect(config.RPCOverrides).To(HaveKeyWithValue(uint64(137), "https://polygon.example"))
	})

	DescribeTable("invalid values",
		func(key, value, message string) {
			GinkgoT().Setenv(key, value)
			_, err := appconfig.FromEnv()
			Expect(err).To(MatchError(ContainSubstring(message)))
		},
		Entry("chain id", "DEFAULT_CHAIN_ID", "arb", "invalid DEFAULT_CHAIN_ID"),
		Entry("zero chain id", "DEFAULT_CHAIN_ID", "0", "must be non-zero"),
		Entry("log format", "LOG_FORMAT", "xml", "LOG_FORMAT"),
		Entry("retries", "DIAL_RETRIES", "-1", "must not be negative"),
		Entry("delay", "DIAL_RETRY_DELAY", "soon", "invalid DIAL_RETRY_DELAY"),
		Entry("rate", "APPROVE_RATE_PER_MINUTE", "many", "invalid APPROVE_RATE_PER_MINUTE"),
		Entry("watch", "WATCH_RECEIPTS", "maybe", "invalid WATCH_RECEIPTS"),
		Entry("multiplier", "BASE_FEE_MULTIPLIER", "0.5", "at least 1"),
		Entry("rpc key", "RPC_URL_polygon", "https://x", "invalid chain id"),
	)

	It("should reject an empty listen address", func() {
		config, err := appconfig.FromEnv()
		Expect(err).NotTo(HaveOccurred())

		config.ListenAddr = " "
		Expect(config.Validate()).To(MatchError(ContainSubstring("LISTEN_ADDR must not be empty")))
	})

	It("should load a .env file without overriding the environment", func() {
		GinkgoT().Setenv("LISTEN_ADDR", ":7000")

		path := filepath.Join(GinkgoT().TempDir(), ".env")
		Expect(os.WriteFile(path, []byte("LISTEN_ADDR=:9999\nDEFAULT_CHAIN_ID=1\n"), 0o600)).To(Succeed())

		config, err := appconfig.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.ListenAddr).To(Equal(":7000"))
		Expect(config.DefaultChainID).To(Equal(chains.EthereumMainnet))
	})

	It("should tolerate a missing .env file", func() {
		_, err := appconfig.Load(filepath.Join(GinkgoT().TempDir(), "missing.env"))
		Expect(err).NotTo(HaveOccurred())
	})
})
