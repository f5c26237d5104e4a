package viz

import (
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Length() float64      { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Camera projects points onto the screen plane after rotating them about
// the origin.
type Camera struct {
	Distance         float64
	RotX, RotY, RotZ float64
	Zoom             float64
}

// NewCamera looks at the unit cube from a slightly raised, turned angle,
// the usual view of a 3-D phase portrait.
func NewCamera() *Camera {
	return &Camera{Distance: 4, RotX: -0.35, RotY: 0.6, Zoom: 1.0}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }

func (c *Camera) RotatePoint(p Vec3) Vec3 {
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cz, sz := math.Cos(c.RotZ), math.Sin(c.RotZ)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	return p
}

// Project converts a point to sub-pixel screen coordinates.
// Returns x, y, depth, and visibility.
func (c *Camera) Project(p Vec3, sw, sh int) (int, int, float64, bool) {
	rot := c.RotatePoint(p).Scale(c.Zoom)
	dist := c.Distance
	if rot.Z >= dist-0.1 {
		return 0, 0, 0, false
	}
	scale := dist / (dist - rot.Z)
	minDim := math.Min(float64(sw), float64(sh))
	pScale := minDim / 2.2
	sx := int(rot.X*scale*pScale) + sw/2
	sy := int(-rot.Y*scale*pScale) + sh/2
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End Vec3
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe         { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e Vec3) { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) AddPoint(p Vec3)   { w.Edges = append(w.Edges, Edge{p, p}) }
func (w *Wireframe) Len() int          { return len(w.Edges) }

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
}

// Render3D draws the wireframe to the canvas, far edges first.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.PixelWidth(), c.PixelHeight()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if v1 || v2 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, e := range proj {
		if e.x1 == e.x2 && e.y1 == e.y2 {
			c.Set(e.x1, e.y1)
		} else {
			c.DrawLine(e.x1, e.y1, e.x2, e.y2)
		}
	}
}

// BoxWireframe is the outline of the cube [-s, s]^3.
func BoxWireframe(s float64) *Wireframe {
	w := NewWireframe()
	v := []Vec3{{-s, -s, -s}, {s, -s, -s}, {s, s, -s}, {-s, s, -s}, {-s, -s, s}, {s, -s, s}, {s, s, s}, {-s, s, s}}
	ei := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	for _, e := range ei {
		w.AddEdge(v[e[0]], v[e[1]])
	}
	return w
}

// TrajectoryWireframe normalises a 3-D path into [-1, 1]^3 and joins
// consecutive points. Non-finite points break the path.
func TrajectoryWireframe(xs, ys, zs []float64) *Wireframe {
	n := min(len(xs), len(ys), len(zs))
	w := NewWireframe()
	if n == 0 {
		return w
	}
	nx, ny, nz := normaliser(xs[:n]), normaliser(ys[:n]), normaliser(zs[:n])
	var prev Vec3
	havePrev := false
	for i := 0; i < n; i++ {
		if !finite(xs[i]) || !finite(ys[i]) || !finite(zs[i]) {
			havePrev = false
			continue
		}
		p := Vec3{nx(xs[i]), ny(ys[i]), nz(zs[i])}
		if havePrev {
			w.AddEdge(prev, p)
		} else {
			w.AddPoint(p)
		}
		prev, havePrev = p, true
	}
	return w
}

func normaliser(vs []float64) func(float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if finite(v) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if !(hi > lo) {
		return func(float64) float64 { return 0 }
	}
	mid, half := (lo+hi)/2, (hi-lo)/2
	return func(v float64) float64 { return (v - mid) / half }
}

// Render3DTrajectory draws a 3-D path inside its bounding box and labels
// the axes.
func Render3DTrajectory(xs, ys, zs []float64, labels [3]string, width, height int, cam *Camera) string {
	if cam == nil {
		cam = NewCamera()
	}
	box := NewCanvas(width, height)
	Render3D(box, BoxWireframe(1), cam)
	path := NewCanvas(width, height)
	Render3D(path, TrajectoryWireframe(xs, ys, zs), cam)

	boxStyle := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	pathStyle := lipgloss.NewStyle().Foreground(CurrentTheme.SeriesColor(0))

	var b strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			switch {
			case path.Lit(row, col):
				b.WriteString(pathStyle.Render(string(path.Grid[row][col] | box.Grid[row][col])))
			case box.Lit(row, col):
				b.WriteString(boxStyle.Render(string(box.Grid[row][col])))
			default:
				b.WriteRune(brailleBlank)
			}
		}
		b.WriteByte('\n')
	}
	axes := MetricLabel.Render("x: "+labels[0]) + "  " + MetricLabel.Render("y: "+labels[1]) + "  " + MetricLabel.Render("z: "+labels[2])
	b.WriteString(axes)
	return BoxWithTitle("", b.String()) + "\n"
}
