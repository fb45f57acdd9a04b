package cli

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/tx/erc721"
	"github.com/yolodolo42/txflow/internal/ui"
)

var nftCmd = &cobra.Command{
	Use:   "nft <contract> [token-id]",
	Short: "Read ERC-721 tokens",
	Long: `Show one token of an ERC-721 collection on the selected chain, or a page of
tokens in ID order when no token ID is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNFT,
}

func init() {
	rootCmd.AddCommand(nftCmd)

	nftCmd.Flags().Int64("start", 0, "Offset of the first token from the collection's first ID")
	nftCmd.Flags().Int64("count", erc721.DefaultCount, "Number of tokens to read")
	nftCmd.Flags().Bool("owners", false, "Also read each token's owner")
}

func runNFT(cmd *cobra.Command, args []string) error {
	start, _ := cmd.Flags().GetInt64("start")
	count, _ := cmd.Flags().GetInt64("count")
	owners, _ := cmd.Flags().GetBool("owners")

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	c, err := current.chain()
	if err != nil {
		return err
	}
	ct, err := contract.New(current.optionalClient(), c, args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		id, ok := new(big.Int).SetString(args[1], 0)
		if !ok || id.Sign() < 0 {
			return fmt.Errorf("invalid token id: %s", args[1])
		}
		nft, err := erc721.GetNFT(ctx, current.registry, ct, id, true)
		if err != nil {
			return err
		}
		fmt.Print(ui.KV("Token", nft.ID.String(), "URI", nft.TokenURI, "Owner", nft.Owner.Hex()))
		return nil
	}

	nfts, err := erc721.GetNFTs(ctx, current.registry, ct, erc721.Query{Start: start, Count: count, IncludeOwners: owners})
	if err != nil {
		return err
	}
	fmt.Println(ui.Title(fmt.Sprintf("%d tokens of %s", len(nfts), ct.Address().Hex())))
	for _, nft := range nfts {
		line := fmt.Sprintf("%s %-8s %s", ui.SymbolBullet, nft.ID, nft.TokenURI)
		if nft.Owner != nil {
			line += "  " + ui.Hash(nft.Owner.Hex())
		}
		fmt.Println(line)
	}
	return nil
}
