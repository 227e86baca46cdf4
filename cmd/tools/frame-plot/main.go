// Command frame-plot renders a recorded frame as a top-down scatter plot.
// Useful for eyeballing a capture straight from the database without
// running the daemon.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/radariq/internal/db"
)

var (
	dbPath    = flag.String("db", "radariq.db", "Path to the SQLite database")
	sessionID = flag.String("session", "", "Session to plot (defaults to the most recent)")
	frameID   = flag.Int64("frame", 0, "Frame ID to plot (defaults to the session's latest frame)")
	outPath   = flag.String("out", "frame.png", "Output image path")
)

func run() error {
	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	session := *sessionID
	if session == "" {
		sessions, err := database.Sessions(1)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions recorded in %s", *dbPath)
		}
		session = sessions[0].ID
		log.Printf("using latest session %s", session)
	}

	id := *frameID
	title := fmt.Sprintf("Frame %d", id)
	if id == 0 {
		record, err := database.LatestFrame(session)
		if err != nil {
			return fmt.Errorf("finding frame: %w", err)
		}
		id = record.ID
		title = fmt.Sprintf("Frame %d (%s)", id, record.Mode)
	}

	sessionInfo, err := database.Session(session)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = fmt.Sprintf("X (%s)", sessionInfo.DistanceUnit)
	p.Y.Label.Text = fmt.Sprintf("Y (%s)", sessionInfo.DistanceUnit)

	points, err := database.FramePoints(id)
	if err != nil {
		return fmt.Errorf("loading points: %w", err)
	}
	objects, err := database.FrameObjects(id)
	if err != nil {
		return fmt.Errorf("loading objects: %w", err)
	}
	if len(points) == 0 && len(objects) == 0 {
		return fmt.Errorf("frame %d has no measurements", id)
	}

	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Radius = vg.Points(2)
		scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%d points", len(points)), scatter)
	}

	if len(objects) > 0 {
		xys := make(plotter.XYs, len(objects))
		for i, o := range objects {
			xys[i] = plotter.XY{X: o.Position[0], Y: o.Position[1]}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Radius = vg.Points(4)
		scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%d objects", len(objects)), scatter)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, *outPath); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	log.Printf("wrote %s", *outPath)
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
