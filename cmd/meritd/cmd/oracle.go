package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"

	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

const (
	flagOutDir     = "out-dir"
	flagProverKey  = "prover-key"
	flagOwner      = "owner"
	verifierKeyOut = "verifier.key"
	proverKeyOut   = "prover.key"
)

// OracleCmd groups the attestation service helpers.
func OracleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Generate attestation keys and attest contribution proofs",
	}
	cmd.AddCommand(oracleSetupCmd(), oracleAttestCmd())
	return cmd
}

func oracleSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the Groth16 setup and write verifier.key and prover.key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString(flagOutDir)
			if dir == "" {
				dir = filepath.Join(homeDir(cmd), "config")
			}
			if err := cmtos.EnsureDir(dir, 0o700); err != nil {
				return err
			}

			verifier, prover, err := oracle.Setup()
			if err != nil {
				return err
			}

			vkPath := filepath.Join(dir, verifierKeyOut)
			if err := writeFile(vkPath, func(f *os.File) error { return verifier.WriteVerifyingKey(f) }); err != nil {
				return err
			}
			pkPath := filepath.Join(dir, proverKeyOut)
			if err := writeFile(pkPath, func(f *os.File) error {
				_, err := prover.WriteTo(f)
				return err
			}); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"verifying_key": vkPath, "proving_key": pkPath})
		},
	}
	cmd.Flags().String(flagOutDir, "", "output directory, defaults to <home>/config")
	return cmd
}

func oracleAttestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attest [category] [proof-file]",
		Short: "Attest a proof envelope and print it with the attestation filled in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := types.ParseCategory(args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read proof: %w", err)
			}
			proof, err := types.DecodeProof(category, raw)
			if err != nil {
				return err
			}
			ownerRaw, _ := cmd.Flags().GetString(flagOwner)
			owner, err := parseAddress(ownerRaw)
			if err != nil {
				return err
			}

			pkPath, _ := cmd.Flags().GetString(flagProverKey)
			if pkPath == "" {
				pkPath = filepath.Join(homeDir(cmd), "config", proverKeyOut)
			}
			f, err := os.Open(pkPath)
			if err != nil {
				return fmt.Errorf("failed to open proving key: %w", err)
			}
			defer f.Close()
			prover, err := oracle.LoadProver(f)
			if err != nil {
				return err
			}

			attestation, err := prover.Attest(owner, proof)
			if err != nil {
				return err
			}

			var envelope map[string]json.RawMessage
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return err
			}
			encoded, err := json.Marshal(attestation)
			if err != nil {
				return err
			}
			envelope["attestation"] = encoded
			return printJSON(cmd, envelope)
		},
	}
	cmd.Flags().String(flagOwner, "", "bech32 address of the contributor")
	cmd.Flags().String(flagProverKey, "", "proving key file, defaults to <home>/config/prover.key")
	return cmd
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
