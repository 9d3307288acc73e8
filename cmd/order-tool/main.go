package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tricodex/darkpool/pkg/crypto"
	"github.com/tricodex/darkpool/pkg/ledger"
	"github.com/tricodex/darkpool/pkg/settlement"
)

// order-tool encodes order payloads for submission and produces
// attestation proofs for matcher self-updates.
//
//	order-tool encode -key <hex> -token 0x.. -price 10 -size 5 -buy
//	order-tool decode -payload 0x..
//	order-tool attest -key <hex> -app-id darkpool-devnet -matcher 0x..
func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "encode":
		runEncode(os.Args[2:])
	case "decode":
		runDecode(os.Args[2:])
	case "attest":
		runAttest(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: order-tool encode|decode|attest [flags]")
	os.Exit(2)
}

func runEncode(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	keyHex := fs.String("key", "", "owner private key (hex); omitted generates a fresh key")
	tokenHex := fs.String("token", "", "asset address")
	price := fs.Int64("price", 0, "limit price")
	size := fs.Int64("size", 0, "order size")
	buy := fs.Bool("buy", false, "buy side (default sell)")
	fs.Parse(args)

	if !common.IsHexAddress(*tokenHex) || *price <= 0 || *size <= 0 {
		fmt.Fprintln(os.Stderr, "encode requires -token, positive -price and -size")
		os.Exit(2)
	}

	signer := loadSigner(*keyHex)
	fmt.Printf("Owner: %s\n", signer.Address().Hex())

	payload, err := ledger.EncodePayload(0, signer.Address(), ledger.Terms{
		Token: common.HexToAddress(*tokenHex),
		Price: *price,
		Size:  *size,
		IsBuy: *buy,
	})
	if err != nil {
		fatal(err)
	}

	sig, err := signer.SignMessage(payload)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Payload: %s\n", hexutil.Encode(payload))
	fmt.Printf("Signature: %s\n", hexutil.Encode(sig))
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	payloadHex := fs.String("payload", "", "0x-prefixed payload")
	fs.Parse(args)

	payload, err := hexutil.Decode(*payloadHex)
	if err != nil {
		fatal(err)
	}
	id, owner, terms, err := ledger.DecodePayload(payload)
	if err != nil {
		fatal(err)
	}

	side := "sell"
	if terms.IsBuy {
		side = "buy"
	}
	fmt.Printf("OrderID: %d\nOwner: %s\nToken: %s\nPrice: %d\nSize: %d\nSide: %s\n",
		id, owner.Hex(), terms.Token.Hex(), terms.Price, terms.Size, side)
}

func runAttest(args []string) {
	fs := flag.NewFlagSet("attest", flag.ExitOnError)
	keyHex := fs.String("key", "", "enclave private key (hex); omitted generates a fresh key")
	appID := fs.String("app-id", "", "deployed app identifier")
	matcherHex := fs.String("matcher", "", "matcher address to endorse")
	fs.Parse(args)

	if *appID == "" || !common.IsHexAddress(*matcherHex) {
		fmt.Fprintln(os.Stderr, "attest requires -app-id and -matcher")
		os.Exit(2)
	}

	signer := loadSigner(*keyHex)
	digest := settlement.AttestationDigest([]byte(*appID), common.HexToAddress(*matcherHex))
	proof, err := signer.Sign(digest)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Enclave key: %s\n", signer.Address().Hex())
	fmt.Printf("Proof: %s\n", hexutil.Encode(proof))
}

func loadSigner(keyHex string) *crypto.Signer {
	var signer *crypto.Signer
	var err error
	if keyHex == "" {
		signer, err = crypto.GenerateKey()
	} else {
		signer, err = crypto.FromPrivateKeyHex(keyHex)
	}
	if err != nil {
		fatal(err)
	}
	return signer
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
