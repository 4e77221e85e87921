// Package report пишет отчёт прогона в CSV: по строке на детекцию,
// сопоставление пары, оценку при пороге и панораму.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pano-bot/internal/domain/entity"
)

// Header колонки отчёта. Кадры нумеруются с 1, расстояния сопоставлений
// в последней колонке разделены ';'. Строки других типов кладут туда свои поля.
var Header = []string{"type", "detector", "img_i", "img_j", "num_matches", "mean_dist", "time_ms", "distances"}

// WriteCSV пишет отчёт. Неудачные оценки и панорамы пропускаются.
func WriteCSV(w io.Writer, r *entity.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range Rows(r) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Rows строит строки отчёта без заголовка.
func Rows(r *entity.Report) [][]string {
	var rows [][]string
	for _, f := range r.Features {
		if f.Err != nil {
			continue
		}
		rows = append(rows, []string{"detect", r.Detector, num(f.Image), "", "", "", ms(f.Duration),
			"keypoints=" + itoa(f.Keypoints)})
	}
	for _, m := range r.Matches {
		if m.Err != nil {
			continue
		}
		dists := make([]string, len(m.Matches))
		for i, c := range m.Matches {
			dists[i] = ftoa(c.Distance)
		}
		rows = append(rows, []string{"match", r.Detector, num(m.Pair.From), num(m.Pair.To),
			itoa(len(m.Matches)), ftoa(m.MeanDistance), ms(m.Duration), strings.Join(dists, ";")})
	}
	for _, e := range r.Estimates {
		if e.Err != nil {
			continue
		}
		rows = append(rows, []string{"homography", r.Detector, num(e.Pair.From), num(e.Pair.To),
			itoa(e.InlierCount), "", ms(e.Duration), "thr=" + ftoa(e.Threshold)})
	}
	for _, p := range r.Panoramas {
		if p.Err != nil {
			continue
		}
		rows = append(rows, []string{"panorama", r.Detector, "", "", "", "", ms(p.Duration),
			fmt.Sprintf("thr=%s;mode=%s;size=%dx%d", ftoa(p.Threshold), p.Mode, p.Canvas.Width, p.Canvas.Height)})
	}
	return rows
}

func itoa(v int) string { return strconv.Itoa(v) }

// num номер кадра в отчёте, с 1.
func num(index int) string { return strconv.Itoa(index + 1) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
}
