package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/cinefluent/internal/segment"
	"github.com/MimeLyc/cinefluent/internal/service"
	"github.com/MimeLyc/cinefluent/internal/subtitle"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var movieID, lang, title string

	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Parse, enrich and segment one subtitle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if lang == "" {
				lang, _ = subtitle.LanguageFromFilename(path)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.ProcessUpload(cmd.Context(), service.UploadRequest{
				Data:      data,
				Extension: filepath.Ext(path),
				MovieID:   movieID,
				Language:  lang,
				Title:     title,
				Source:    service.SourceImport,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %s (%s) as %s\n", filepath.Base(path), humanize.Bytes(uint64(len(data))), res.SubtitleID)
			fmt.Fprintln(out, renderTable(out,
				[]string{"Cues", "Segments", "Duration", "Vocabulary", "Avg difficulty"},
				[][]string{summaryRow(res.Summary)},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&movieID, "movie", "", "Movie id the subtitle belongs to")
	cmd.Flags().StringVar(&lang, "language", "", "Subtitle language (detected when omitted)")
	cmd.Flags().StringVar(&title, "title", "", "Movie title")
	_ = cmd.MarkFlagRequired("movie")
	return cmd
}

func summaryRow(s segment.Summary) []string {
	return []string{
		humanize.Comma(int64(s.TotalCues)),
		humanize.Comma(int64(s.TotalSegments)),
		formatSeconds(s.DurationSeconds),
		humanize.Comma(int64(s.VocabularyCount)),
		strconv.FormatFloat(s.AvgDifficulty, 'f', 2, 64),
	}
}

func formatSeconds(secs float64) string {
	total := int(secs)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}
