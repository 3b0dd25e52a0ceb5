package wallet_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lisanmuaddib/allowance-go/pkg/chains"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connector", func() {
	var (
		ctx        context.Context
		registry   *chains.Registry
		transports map[uint64]*fakeTransport
		failing    map[uint64]bool
		dials      int
		mu         sync.Mutex
		conn       *wallet.Connector
	)

	dial := func(ctx context.Context, network chains.Network) (wallet.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if failing[network.ChainID] {
			return nil, errBoom
		}
		t := newFakeTransport()
		transports[network.ChainID] = t
		return t, nil
	}

	keySource := func() (wallet.Signer, error) {
		return wallet.NewKeyManager(testKeyHex)
	}

	newConnector := func() *wallet.Connector {
		c, err := wallet.NewConnector(ctx, wallet.ConnectorConfig{
			Registry:       registry,
			Sources:        map[string]wallet.SignerSource{chains.ConnectorPrivateKey: keySource},
			Dial:           dial,
			DefaultChainID: chains.ArbitrumOne,
			Logger:         quietLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		registry, err = chains.NewRegistry(chains.DefaultNetworks(), chains.DefaultConnectors())
		Expect(err).NotTo(HaveOccurred())
		transports = make(map[uint64]*fakeTransport)
		failing = make(map[uint64]bool)
		dials = 0
	})

	JustBeforeEach(func() {
		conn = newConnector()
	})

	Context("before connecting", func() {
		It("should start disconnected on the default chain", func() {
			Expect(conn.Status()).To(Equal(wallet.StatusDisconnected))
			Expect(conn.ChainID()).To(Equal(chains.ArbitrumOne))
			Expect(conn.Network().Name).To(Equal("Arbitrum One"))

			_, ok := conn.Account()
			Expect(ok).To(BeFalse())
		})

		It("should expose a public client but no writer", func() {
			Expect(conn.PublicClient()).NotTo(BeNil())

			session := conn.Acquire()
			defer session.Release()
			Expect(session.Connected).To(BeFalse())
			Expect(session.Transport).NotTo(BeNil())
			Expect(session.Writer).To(BeNil())
		})

		It("should only list connectors with a signer source", func() {
			Expect(conn.Connectors()).To(Equal([]string{chains.ConnectorPrivateKey}))
		})
	})

	Context("when the default chain cannot be dialed", func() {
		BeforeEach(func() {
			failing[chains.ArbitrumOne] = true
		})

		It("should still construct without a public client", func() {
			Expect(conn.PublicClient()).To(BeNil())
		})
	})

	Describe("Connect", func() {
		It("should connect the configured signer", func() {
			addr, err := conn.Connect(ctx, chains.ConnectorPrivateKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(common.HexToAddress(testAddressHex)))
			Expect(conn.Status()).To(Equal(wallet.StatusConnected))
			Expect(conn.ActiveConnector()).To(Equal(chains.ConnectorPrivateKey))

			session := conn.Acquire()
			defer session.Release()
			Expect(session.Connected).To(BeTrue())
			Expect(session.Account).To(Equal(addr))
			Expect(session.Writer).NotTo(BeNil())
		})

		It("should reject an unknown connector", func() {
			_, err := conn.Connect(ctx, chains.ConnectorKeystore)
			Expect(err).To(MatchError(ContainSubstring("not available")))
			Expect(conn.Status()).To(Equal(wallet.StatusDisconnected))
		})

		It("should forget the account on Disconnect", func() {
			_, err := conn.Connect(ctx, chains.ConnectorPrivateKey)
			Expect(err).NotTo(HaveOccurred())

			conn.Disconnect()
			Expect(conn.Status()).To(Equal(wallet.StatusDisconnected))

			session := conn.Acquire()
			defer session.Release()
			Expect(session.Connected).To(BeFalse())
			Expect(session.Writer).To(BeNil())
		})
	})

	Describe("SwitchChain", func() {
		It("should dial the new chain once and make it active", func() {
			Expect(conn.SwitchChain(ctx, chains.PolygonMainnet)).To(Succeed())
			Expect(conn.ChainID()).To(Equal(chains.PolygonMainnet))
			Expect(conn.PublicClient()).To(BeIdenticalTo(transports[chains.PolygonMainnet]))

			Expect(conn.SwitchChain(ctx, chains.ArbitrumOne)).To(Succeed())
			Expect(conn.SwitchChain(ctx, chains.PolygonMainnet)).To(Succeed())
			Expect(dials).To(Equal(2))
		})

		It("should reject chains outside the registry", func() {
			err := conn.SwitchChain(ctx, 10)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeUnsupportedChain)).To(BeTrue())
			Expect(conn.ChainID()).To(Equal(chains.ArbitrumOne))
		})

		It("should keep the active chain when dialing fails", func() {
			failing[chains.BSCMainnet] = true

			err := conn.SwitchChain(ctx, chains.BSCMainnet)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeRPCError)).To(BeTrue())
			Expect(conn.ChainID()).To(Equal(chains.ArbitrumOne))
		})
	})

	Describe("Acquire", func() {
		It("should pin the active chain until released", func() {
			session := conn.Acquire()
			Expect(session.ChainID).To(Equal(chains.ArbitrumOne))

			err := conn.SwitchChain(ctx, chains.PolygonMainnet)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeChainBusy)).To(BeTrue())
			Expect(conn.ChainID()).To(Equal(chains.ArbitrumOne))

			session.Release()
			session.Release()
			Expect(conn.SwitchChain(ctx, chains.PolygonMainnet)).To(Succeed())
			Expect(conn.ChainID()).To(Equal(chains.PolygonMainnet))
		})

		It("should stay pinned while any session is held", func() {
			first := conn.Acquire()
			second := conn.Acquire()

			first.Release()
			err := conn.SwitchChain(ctx, chains.PolygonMainnet)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeChainBusy)).To(BeTrue())

			second.Release()
			Expect(conn.SwitchChain(ctx, chains.PolygonMainnet)).To(Succeed())
		})

		It("should sign and broadcast on the session chain", func() {
			_, err := conn.Connect(ctx, chains.ConnectorPrivateKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.SwitchChain(ctx, chains.EthereumMainnet)).To(Succeed())
			Expect(conn.SwitchChain(ctx, chains.ArbitrumOne)).To(Succeed())

			session := conn.Acquire()
			defer session.Release()
			Expect(conn.SwitchChain(ctx, chains.EthereumMainnet)).NotTo(Succeed())

			call, err := wallet.BuildApproveCall(
				common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
				common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"),
				wallet.MaxAllowance(),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = session.Writer.WriteContract(ctx, wallet.WriteRequest{
				Call: call,
				Gas:  46_000,
				Fees: wallet.GasQuote{
					MaxFeePerGas:         big.NewInt(1_300_000_000),
					MaxPriorityFeePerGas: big.NewInt(100_000_000),
					Is1559:               true,
				},
			})
			Expect(err).NotTo(HaveOccurred())

			arbitrum := transports[chains.ArbitrumOne]
			Expect(arbitrum.sent).To(HaveLen(1))
			Expect(arbitrum.sent[0].ChainId().Uint64()).To(Equal(chains.ArbitrumOne))
			Expect(transports[chains.EthereumMainnet].sent).To(BeEmpty())
		})
	})

	It("should close every transport", func() {
		Expect(conn.SwitchChain(ctx, chains.EthereumMainnet)).To(Succeed())
		conn.Close()

		for _, t := range transports {
			Expect(t.closed).To(BeTrue())
		}
		Expect(conn.PublicClient()).To(BeNil())
	})

	It("should reject a default chain outside the registry", func() {
		_, err := wallet.NewConnector(ctx, wallet.ConnectorConfig{
			Registry:       registry,
			Dial:           dial,
			DefaultChainID: 10,
		})
		Expect(wallet.IsWalletError(err, wallet.ErrCodeUnsupportedChain)).To(BeTrue())
	})
})
