/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/lostfound-board/apiserver/internal/client"
	"github.com/lostfound-board/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	itemsFormat string

	listOpts client.ListOptions

	postItem client.NewItem
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Browse, post and claim items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items on the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		page, err := c.ListItems(cmd.Context(), listOpts)
		if err != nil {
			return err
		}
		if itemsFormat == "json" {
			return writeJSONOutput(cmd.OutOrStdout(), page)
		}
		printItems(cmd.OutOrStdout(), page)
		return nil
	},
}

var itemsPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a lost or found item",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		item, err := c.CreateItem(cmd.Context(), postItem)
		if err != nil {
			return err
		}
		if itemsFormat == "json" {
			return writeJSONOutput(cmd.OutOrStdout(), item)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Posted %s item %s: %s\n", item.Kind, item.ID, item.Title)
		return nil
	},
}

var itemsClaimCmd = &cobra.Command{
	Use:   "claim <item-id>",
	Short: "Claim an item posted by someone else",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		item, err := c.ClaimItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if itemsFormat == "json" {
			return writeJSONOutput(cmd.OutOrStdout(), item)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s (%s)\n", item.Title, item.ID)
		return nil
	},
}

func init() {
	itemsCmd.PersistentFlags().StringVar(&itemsFormat, "format", "table", "output format: table or json")

	f := itemsListCmd.Flags()
	f.StringVar(&listOpts.Kind, "kind", "", "lost or found")
	f.StringVar(&listOpts.Status, "status", "", "active, claimed or returned")
	f.StringVarP(&listOpts.Query, "query", "q", "", "search title, description and location")
	f.BoolVar(&listOpts.Mine, "mine", false, "only items you posted")
	f.StringVar(&listOpts.Order, "order", "", "newest or oldest")
	f.IntVar(&listOpts.Page, "page", 0, "page number")
	f.IntVar(&listOpts.Limit, "limit", 0, "items per page")

	p := itemsPostCmd.Flags()
	p.StringVar(&postItem.Kind, "kind", "", "lost or found")
	p.StringVar(&postItem.Title, "title", "", "short title")
	p.StringVar(&postItem.Description, "description", "", "description")
	p.StringVar(&postItem.Location, "location", "", "where it was lost or found")
	_ = itemsPostCmd.MarkFlagRequired("kind")
	_ = itemsPostCmd.MarkFlagRequired("title")

	itemsCmd.AddCommand(itemsListCmd, itemsPostCmd, itemsClaimCmd)
	rootCmd.AddCommand(itemsCmd)
}

func printItems(w io.Writer, page client.ItemPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tTITLE\tLOCATION\tPOSTED")
	for _, item := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			strings.ToUpper(string(item.Kind)),
			statusLabel(item),
			truncate(item.Title, 40),
			truncate(item.Location, 30),
			item.CreatedAt.Local().Format("2006-01-02"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nPage %d, %d of %d items\n", page.Page, len(page.Items), page.Total)
}

func statusLabel(item types.Item) string {
	label := strings.ToUpper(string(item.Status))
	if item.Status == types.ItemStatusClaimed && item.ClaimedAt != nil {
		label += " " + item.ClaimedAt.Local().Format("01-02")
	}
	return label
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
