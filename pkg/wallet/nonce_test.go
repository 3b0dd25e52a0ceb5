package wallet_test

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lisanmuaddib/allowance-go/pkg/wallet"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NonceManager", func() {
	var (
		ctx       context.Context
		transport *fakeTransport
		nonces    *wallet.NonceManager
		account   = common.HexToAddress(testAddressHex)
	)

	BeforeEach(func() {
		ctx = context.Background()
		transport = newFakeTransport()
		transport.pendingNonce = 7
		nonces = wallet.NewNonceManager()
	})

	It("should skip nonces that are still in use", func() {
		first, err := nonces.Next(ctx, transport, 1, account)
		Expect(err).NotTo(HaveOccurred())
		second, err := nonces.Next(ctx, transport, 1, account)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(Equal(uint64(7)))
		Expect(second).To(Equal(uint64(8)))
		Expect(nonces.InUse(1, account)).To(Equal(2))
	})

	It("should reuse a released nonce", func() {
		n, err := nonces.Next(ctx, transport, 1, account)
		Expect(err).NotTo(HaveOccurred())
		nonces.Release(1, account, n)

		again, err := nonces.Next(ctx, transport, 1, account)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(n))
	})

	It("should track chains separately", func() {
		_, err := nonces.Next(ctx, transport, 1, account)
		Expect(err).NotTo(HaveOccurred())
		n, err := nonces.Next(ctx, transport, 137, account)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(7)))
	})

	It("should wrap rpc failures", func() {
		transport.nonceErr = errBoom
		_, err := nonces.Next(ctx, transport, 1, account)
		Expect(wallet.IsWalletError(err, wallet.ErrCodeRPCError)).To(BeTrue())
	})
})
