/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rotblauer/routecat/flat"
	"github.com/rotblauer/routecat/params"
)

var optRestoreS3Bucket string

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <archive.tgz | s3-key>",
	Short: "Restore a datadir from a backup archive",
	Long: `Extracts a 'routecat backup' archive into the data directory. With
--s3-bucket the argument is an S3 object key and the archive is
downloaded first. Refuses to overwrite an existing engine database.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		datadir := viper.GetString("datadir")

		if _, err := os.Stat(filepath.Join(datadir, params.EngineDBName)); err == nil {
			log.Fatalf("refusing to overwrite existing database in %s", datadir)
		}

		archive := args[0]
		if optRestoreS3Bucket != "" {
			tmp, err := os.CreateTemp("", "routecat-restore-*.tgz")
			if err != nil {
				log.Fatalln(err)
			}
			defer os.Remove(tmp.Name())
			if _, err := flat.DownloadS3(context.Background(), tmp, optRestoreS3Bucket, archive); err != nil {
				log.Fatalln(err)
			}
			tmp.Close()
			archive = tmp.Name()
		}

		n, err := extractArchive(archive, datadir)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Restore done", "datadir", datadir, "files", n)
	},
}

// extractArchive unpacks a tgz into datadir, returning the file count.
// Entries escaping the target directory are rejected.
func extractArchive(archive, datadir string) (int, error) {
	f, err := os.Open(archive)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gzr, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer gzr.Close()
	tr := tar.NewReader(gzr)

	n := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		target := filepath.Join(datadir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(datadir)+string(os.PathSeparator)) {
			return n, fmt.Errorf("archive entry escapes datadir: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0770); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0770); err != nil {
				return n, err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
			if err != nil {
				return n, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return n, err
			}
			if err := out.Close(); err != nil {
				return n, err
			}
			n++
		}
	}
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.PersistentFlags().StringVar(&optRestoreS3Bucket, "s3-bucket", "", "Download the archive from this S3 bucket first")
}
