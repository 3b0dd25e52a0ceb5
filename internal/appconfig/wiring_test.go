package appconfig_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/internal/appconfig"
	"github.com/lisanmuaddib/allowance-go/pkg/chains"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var _ = Describe("Wiring", func() {
	var (
		config *appconfig.Config
		log    *logrus.Logger
		dialed []chains.Network
	)

	// failingDial records the networks it was asked for and never connects.
	failingDial := func(ctx context.Context, n chains.Network) (wallet.Transport, error) {
		dialed = append(dialed, n)
		return nil, errors.New("offline")
	}

	BeforeEach(func() {
		log = logrus.New()
		log.SetOutput(io.Discard)
		dialed = nil
		config = &appconfig.Config{
			ListenAddr:        ":8080",
			LogFormat:         "json",
			DefaultChainID:    chains.ArbitrumOne,
			RPCOverrides:      map[uint64]string{chains.ArbitrumOne: "http://localhost:8547", 10: "http://optimism"},
			BaseFeeMultiplier: 1.2,
			PrivateKey:        testKeyHex,
		}
		Expect(config.Validate()).To(Succeed())
	})

	It("should apply RPC overrides to the registry", func() {
		registry, err := appconfig.ConfigureRegistry(config, log)
		Expect(err).NotTo(HaveOccurred())

		n, ok := registry.Network(chains.ArbitrumOne)
		Expect(ok).To(BeTrue())
		Expect(n.RPCURL).To(Equal("http://localhost:8547"))
		Expect(registry.Supports(10)).To(BeFalse())
	})

	It("should only create sources for configured key material", func() {
		sources := appconfig.SignerSources(config)
		Expect(sources).To(HaveKey(chains.ConnectorPrivateKey))
		Expect(sources).NotTo(HaveKey(chains.ConnectorKeystore))

		signer, err := sources[chains.ConnectorPrivateKey]()
		Expect(err).NotTo(HaveOccurred())
		Expect(signer.Address()).To(Equal(common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")))
	})

	It("should return a nil signer for a bad key", func() {
		config.PrivateKey = "nope"
		signer, err := appconfig.SignerSources(config)[chains.ConnectorPrivateKey]()
		Expect(err).To(HaveOccurred())
		Expect(signer).To(BeNil())
	})

	It("should wire the app even when the default chain is offline", func() {
		app, err := appconfig.ConfigureApp(context.Background(), config, log, failingDial)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(app.Close)

		Expect(dialed).To(HaveLen(1))
		Expect(dialed[0].RPCURL).To(Equal("http://localhost:8547"))
		Expect(app.Connector.PublicClient()).To(BeNil())
		Expect(app.Connector.Connectors()).To(Equal([]string{chains.ConnectorPrivateKey}))

		_, err = app.Connector.Connect(context.Background(), chains.ConnectorPrivateKey)
		Expect(err).NotTo(HaveOccurred())

		snap, err := app.Flow.Approve(context.Background(), "0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Error).To(Equal("Chain client not available"))

		rec := httptest.NewRecorder()
		app.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
