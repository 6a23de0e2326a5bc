package main

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/fetcher"
)

var (
	fetchOutDir  string
	fetchExtract bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a source dataset over HTTP or FTP",
	Long:  "Downloads boundary or point datasets (shapefile archives, GeoJSON, CSV) into a local directory, extracting ZIP archives when asked.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rawURL := args[0]

		u, err := url.Parse(rawURL)
		if err != nil {
			return eris.Wrapf(err, "parse url %q", rawURL)
		}
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			return eris.Errorf("cannot derive a file name from %q", rawURL)
		}

		if err := os.MkdirAll(fetchOutDir, 0o755); err != nil {
			return eris.Wrap(err, "create output directory")
		}
		dest := filepath.Join(fetchOutDir, name)

		var written int64
		switch u.Scheme {
		case "http", "https":
			f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
			written, err = f.DownloadToFile(ctx, rawURL, dest)
		case "ftp":
			f := fetcher.NewFTPFetcher(fetcher.FTPOptions{})
			written, err = f.DownloadToFile(ctx, rawURL, dest)
		default:
			return eris.Errorf("unsupported scheme %q", u.Scheme)
		}
		if err != nil {
			return err
		}
		zap.L().Info("dataset downloaded",
			zap.String("url", rawURL),
			zap.String("file", dest),
			zap.Int64("bytes", written))

		if fetchExtract && strings.EqualFold(filepath.Ext(dest), ".zip") {
			files, err := fetcher.ExtractZIP(dest, fetchOutDir)
			if err != nil {
				return err
			}
			zap.L().Info("archive extracted",
				zap.String("file", dest),
				zap.Int("entries", len(files)))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOutDir, "out", "data", "output directory")
	fetchCmd.Flags().BoolVar(&fetchExtract, "extract", true, "extract downloaded ZIP archives")
	rootCmd.AddCommand(fetchCmd)
}
