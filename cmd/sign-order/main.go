package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/pkg/app/core"
	"github.com/octagonpredict/clob/pkg/app/core/transaction"
	"github.com/octagonpredict/clob/pkg/crypto"
)

// sign-order generates a keypair, signs a sample order and its cancel
// message, and prints the JSON payloads ready to POST to the API. Useful for
// exercising a local node without a wallet frontend.
func main() {
	var (
		privKey     = flag.String("key", "", "hex private key (generates a new one if empty)")
		exchange    = flag.String("exchange", "0x0000000000000000000000000000000000000001", "verifying contract address")
		conditionID = flag.String("condition", "0x"+fmt.Sprintf("%064x", 1), "conditionId (bytes32 hex)")
		outcome     = flag.Int("outcome", 0, "outcome index")
		isBuy       = flag.Bool("buy", true, "buy side")
		pct         = flag.Float64("pct", 50.0, "price as percentage probability")
		amount      = flag.String("amount", "100000000000000000000", "amount of outcome shares")
		chainID     = flag.Int64("chain", 100010, "EIP-155 chain id")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *privKey != "" {
		signer, err = crypto.FromPrivateKeyHex(*privKey)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fatalf("key: %v", err)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		fatalf("nonce: %v", err)
	}

	amt, ok := new(big.Int).SetString(*amount, 10)
	if !ok || amt.Sign() <= 0 {
		fatalf("invalid amount %q", *amount)
	}

	order := &crypto.OrderEIP712{
		Maker:        signer.Address(),
		ConditionID:  common.HexToHash(*conditionID),
		OutcomeIndex: uint8(*outcome),
		IsBuy:        *isBuy,
		Price:        core.PercentageToPrice(*pct),
		Amount:       amt,
		Nonce:        new(big.Int).SetUint64(nonce),
		Expiry:       big.NewInt(time.Now().Add(24 * time.Hour).Unix()),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  ConditionID: %s\n", order.ConditionID.Hex())
	fmt.Printf("  OutcomeIndex: %d\n", order.OutcomeIndex)
	fmt.Printf("  IsBuy: %v\n", order.IsBuy)
	fmt.Printf("  Price: %s (%.2f%%)\n", order.Price.String(), core.PriceToPercentage(order.Price))
	fmt.Printf("  Amount: %s\n", order.Amount.String())
	fmt.Printf("  Maker: %s\n\n", order.Maker.Hex())

	domain := crypto.EIP712Domain{
		Name:              "OctagonPredict",
		Version:           "1",
		ChainID:           big.NewInt(*chainID),
		VerifyingContract: common.HexToAddress(*exchange),
	}
	eip712Signer := crypto.NewEIP712Signer(domain)

	signature, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		fatalf("sign order: %v", err)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	valid, err := eip712Signer.VerifyOrderSignature(order, signature)
	if err != nil || !valid {
		fatalf("signature self-check failed: valid=%v err=%v", valid, err)
	}

	payload := transaction.OrderPayload{
		Maker:        order.Maker.Hex(),
		ConditionID:  order.ConditionID.Hex(),
		OutcomeIndex: int(order.OutcomeIndex),
		IsBuy:        order.IsBuy,
		Price:        order.Price.String(),
		Amount:       order.Amount.String(),
		Nonce:        order.Nonce.String(),
		Expiry:       order.Expiry.Int64(),
		Signature:    fmt.Sprintf("0x%x", signature),
	}

	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}

	fmt.Println("Submit with:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders")
	fmt.Println("  Content-Type: application/json")
	fmt.Println(string(payloadJSON))
	fmt.Println()

	// Sign a cancel message too, for after submission. The orderId field of
	// the cancel must be the id the API assigns; re-sign with that id.
	cancel := &crypto.CancelEIP712{
		OrderID: "<order-id-from-response>",
		Maker:   signer.Address(),
		Nonce:   order.Nonce,
	}
	cancelSig, err := eip712Signer.SignCancel(signer, cancel)
	if err != nil {
		fatalf("sign cancel: %v", err)
	}

	cancelBody := map[string]string{
		"maker":     order.Maker.Hex(),
		"nonce":     order.Nonce.String(),
		"signature": fmt.Sprintf("0x%x", cancelSig),
	}
	cancelJSON, _ := json.MarshalIndent(cancelBody, "", "  ")

	fmt.Println("Cancel with (after re-signing with the real orderId):")
	fmt.Println("  DELETE http://localhost:8080/api/v1/orders/{orderId}")
	fmt.Println(string(cancelJSON))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
