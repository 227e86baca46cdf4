package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/radariq/internal/httputil"
	"github.com/banshee-data/radariq/internal/sensor"
)

// pointCloudChart renders an HTML scatter plot of the latest point cloud
// frame, coloured by intensity. Debugging-only endpoint used to eyeball a
// capture without the UI.
func (s *Server) pointCloudChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	frame, ok := s.rec.Latest()
	if !ok {
		httputil.NotFound(w, "no frames captured yet")
		return
	}
	if frame.Mode != sensor.PointCloud {
		httputil.NotFound(w, "latest frame is not a point cloud")
		return
	}

	data := make([]opts.ScatterData, 0, len(frame.Points))
	maxAbs := 0.0
	maxIntensity := 0.0
	for _, p := range frame.Points {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
		if float64(p.Intensity) > maxIntensity {
			maxIntensity = float64(p.Intensity)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, float64(p.Intensity)}})
	}

	// Symmetric axis ranges with a little padding keep the plot square.
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxIntensity == 0 {
		maxIntensity = 1
	}

	unit := s.sensor.Units().Distance
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Point Cloud", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Point Cloud",
			Subtitle: fmt.Sprintf("frame=%d points=%d captured=%s", frame.Number, len(frame.Points), frame.Captured.Format("15:04:05.000")),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: fmt.Sprintf("X (%s)", unit), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: fmt.Sprintf("Y (%s)", unit), NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxIntensity),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("rendering chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
