package wallet_test

import (
	"errors"
	"fmt"

	"github.com/lisanmuaddib/allowance-go/pkg/wallet"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WalletError", func() {
	It("should include code and chain in Error", func() {
		err := wallet.NewWalletError(wallet.ErrCodeRPCError, "failed to get nonce", errBoom, 137)
		Expect(err.Error()).To(Equal("[RPC_ERROR] failed to get nonce on chain 137: boom"))
		Expect(errors.Is(err, errBoom)).To(BeTrue())
	})

	It("should find wrapped wallet errors by code", func() {
		err := fmt.Errorf("flow: %w", wallet.NewWalletError(wallet.ErrCodeTimeout, "slow", nil, 0))
		Expect(wallet.IsWalletError(err, wallet.ErrCodeTimeout)).To(BeTrue())
		Expect(wallet.IsWalletError(err, wallet.ErrCodeRPCError)).To(BeFalse())
		Expect(wallet.IsWalletError(errBoom, wallet.ErrCodeTimeout)).To(BeFalse())
	})

	DescribeTable("UserMessage",
		func(err error, expected string) {
			Expect(wallet.UserMessage(err, "Transaction failed")).To(Equal(expected))
		},
		Entry("nil", nil, ""),
		Entry("bare message", wallet.NewWalletError(wallet.ErrCodeNotConnected, "Wallet not Connected", nil, 0), "Wallet not Connected"),
		Entry("with cause", wallet.NewWalletError(wallet.ErrCodeTransactionFailed, "failed to send transaction", errBoom, 1), "failed to send transaction: boom"),
		Entry("empty wallet error", wallet.NewWalletError(wallet.ErrCodeTransactionFailed, "", nil, 0), "Transaction failed"),
		Entry("plain error", errBoom, "boom"),
		Entry("empty plain error", errors.New(""), "Transaction failed"),
	)
})
