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
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rotblauer/routecat/flat"
	"github.com/rotblauer/routecat/params"
)

var (
	optBackupOut      string
	optBackupS3Bucket string
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the data directory to a tgz, optionally uploading to S3",
	Long: `Archives the engine data directory (excluding the backups directory
itself) into a timestamped .tgz. With --s3-bucket, or AWS_BUCKETNAME in
the environment, the archive is also uploaded. Run against a quiet
engine; the bolt file is copied as-is.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		datadir := viper.GetString("datadir")

		out := optBackupOut
		if out == "" {
			dest := flat.NewFlatWithRoot(datadir).ForBackups()
			if err := dest.MkdirAll(); err != nil {
				log.Fatalln(err)
			}
			out = filepath.Join(dest.Path(),
				fmt.Sprintf("routecat-%s.tgz", time.Now().UTC().Format("20060102T150405Z")))
		}

		n, err := archiveDatadir(datadir, out)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Backup written", "path", out, "size", humanize.Bytes(uint64(n)))

		bucket := optBackupS3Bucket
		if bucket == "" {
			bucket = params.AWS_BUCKETNAME
		}
		if bucket != "" {
			key := filepath.Base(out)
			if err := flat.UploadS3(context.Background(), bucket, key, out); err != nil {
				log.Fatalln(err)
			}
		}
	},
}

// archiveDatadir tars and gzips everything under datadir except the
// backups directory, returning bytes written.
func archiveDatadir(datadir, out string) (int64, error) {
	gzw, err := flat.NewFlatGZWriter(out, &flat.GZFileWriterConfig{
		CompressionLevel: 6,
		Flag:             os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
		FilePerm:         0660,
		DirPerm:          0770,
	})
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(gzw.Writer())

	walkErr := filepath.Walk(datadir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(datadir, path)
		if err != nil {
			return err
		}
		if rel == "." || rel == flat.BackupsDir {
			if info.IsDir() && rel == flat.BackupsDir {
				return filepath.SkipDir
			}
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		tw.Close()
		gzw.Close()
		return 0, walkErr
	}
	if err := tw.Close(); err != nil {
		gzw.Close()
		return 0, err
	}
	if err := gzw.Close(); err != nil {
		return 0, err
	}
	fi, err := os.Stat(out)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func init() {
	rootCmd.AddCommand(backupCmd)

	pFlags := backupCmd.PersistentFlags()
	pFlags.StringVar(&optBackupOut, "out", "", "Archive path (default: <datadir>/backups/routecat-<ts>.tgz)")
	pFlags.StringVar(&optBackupS3Bucket, "s3-bucket", "", "S3 bucket to upload the archive to")
}
