// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// genkeys generates key pairs usable as locking public keys in genesis
// allocations and transaction outputs, on any of the supported signature
// curves.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"gitlab.com/embercoin/emberd/ecsig"
)

func main() {
	cliApp := &cli.App{
		Name:  "genkeys",
		Usage: "generate ledger key pairs",
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "generate a new key pair on the chosen curve",
				Flags:  generateFlags(),
				Action: generateCmd,
			},
			{
				Name:   "curves",
				Usage:  "list the supported signature curves",
				Action: curvesCmd,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func generateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "curve",
			Aliases: []string{"c"},
			Value:   "secp256k1",
			Usage:   "signature curve: secp256k1, p256 or p384",
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Value:   1,
			Usage:   "number of key pairs to generate",
		},
	}
}

func generateCmd(c *cli.Context) error {
	curveID, err := ecsig.CurveIDFromName(c.String("curve"))
	if err != nil {
		return err
	}

	count := c.Int("count")
	if count < 1 {
		return errors.New("count must be at least 1")
	}

	for i := 0; i < count; i++ {
		privKey, pubKey, err := ecsig.GenerateKeyPair(curveID)
		if err != nil {
			return errors.Wrap(err, "unable to generate key pair")
		}

		fmt.Printf("curve:   %s\n", curveID)
		fmt.Printf("private: %s\n", hex.EncodeToString(privKey))
		fmt.Printf("public:  %s\n\n", hex.EncodeToString(pubKey))
	}
	return nil
}

func curvesCmd(*cli.Context) error {
	for _, curveID := range ecsig.SupportedCurves() {
		fmt.Printf("%d\t%s\n", uint8(curveID), curveID)
	}
	return nil
}
