// Command vidtexplay plays a registered video or a URI on an in-game
// texture, using the resource roots listed in vidtex.json.
//
// Usage:
//
//	vidtexplay [-config path/to/vidtex.json] <namespace:path | uri | file>
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sirupsen/logrus"

	vidtex "github.com/erparts/go-vidtex"
	"github.com/erparts/go-vidtex/ebitentex"
	"github.com/erparts/go-vidtex/internal/config"
	"github.com/erparts/go-vidtex/natives"
	"github.com/erparts/go-vidtex/reisenbackend"
	"github.com/erparts/go-vidtex/scan"
)

const seekStep = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the configuration file (default ./"+config.FileName+")")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidtexplay [-config path] <namespace:path | uri | file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cwd, err := os.Getwd()
	if err != nil {
		logrus.WithError(err).Fatal("Unable to read working directory")
	}
	cfg, err := config.Load(cwd, *configPath)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"code":  config.Code(err),
			"error": err.Error(),
		}).Fatal("Unable to load configuration")
	}
	logrus.SetLevel(cfg.LogLevel)

	var bootstrap vidtex.Bootstrap
	if !cfg.NativesOff {
		bootstrap = natives.Guard(reisenbackend.Bootstrap, cfg.NativeLibPaths...)
	}
	table := ebitentex.NewTable()
	manager := vidtex.NewManager(vidtex.Options{
		Bootstrap:  bootstrap,
		Textures:   table,
		Extensions: cfg.Extensions,
		OnPlayerError: func(id vidtex.Identifier, err error) {
			logrus.WithFields(logrus.Fields{
				"player": id.String(),
				"error":  err.Error(),
			}).Error("Player closed after a render failure")
		},
	})

	roots := make(scan.Roots, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		roots = append(roots, scan.Dir{Root: root, VideosDir: cfg.VideosDir})
	}
	if err := manager.ReloadFrom(context.Background(), roots); err != nil {
		logrus.WithError(err).Warn("Video reload failed, only URIs can be played")
	}

	handle, err := resolve(manager, flag.Arg(0))
	if err != nil {
		logrus.WithError(err).Fatal("Unable to resolve video")
	}

	player := manager.GetOrCreate(vidtex.MustIdentifier("vidtexplay", "main"))
	if err := player.Media().Play(handle); err != nil {
		logrus.WithError(err).Error("Unable to start playback")
	}

	ebiten.SetWindowTitle("vidtexplay")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)

	app := &App{manager: manager, table: table, player: player, roots: roots}
	queue := manager.RenderQueue()
	player.Events().AddListener(vidtex.EventListener{
		OnFinished: func() {
			queue.Post(func() { app.status = "finished (SPACE to replay)" })
		},
		OnError: func(err error) {
			queue.Post(func() { app.status = "decoding failed: " + err.Error() })
		},
	})
	err = ebiten.RunGame(app)
	if closeErr := manager.Close(); closeErr != nil {
		logrus.WithError(closeErr).Warn("Error while closing video players")
	}
	if err != nil {
		logrus.WithError(err).Fatal("Game loop failed")
	}
}

// resolve tries, in order: a registered identifier, a URI, a local file.
func resolve(manager *vidtex.Manager, arg string) (vidtex.Handle, error) {
	if id, err := vidtex.ParseIdentifier(arg); err == nil {
		if handle, ok := manager.Handle(id); ok {
			return handle, nil
		}
	}
	handle, uriErr := manager.HandleFromURI(arg)
	if uriErr == nil {
		return handle, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return vidtex.NewFileHandle(vidtex.Identifier{}, arg), nil
	}
	return nil, fmt.Errorf("%q is not a registered video, a URI or a file: %w", arg, uriErr)
}

type App struct {
	manager *vidtex.Manager
	table   *ebitentex.Table
	player  *vidtex.Player
	roots   scan.Roots
	status  string
}

func (a *App) Layout(_, _ int) (int, int) {
	panic("Layout() should not be called when LayoutF() exists")
}

func (a *App) LayoutF(w, h float64) (float64, float64) {
	scaleFactor := ebiten.Monitor().DeviceScaleFactor()
	return w * scaleFactor, h * scaleFactor
}

func (a *App) Update() error {
	if err := a.manager.Tick(); err != nil {
		a.status = err.Error()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if a.player.State() == vidtex.Closed {
		return nil
	}

	controls := a.player.Controls()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace), inpututil.IsKeyJustPressed(ebiten.KeyP):
		switch controls.State() {
		case vidtex.Playing:
			controls.SetPause(true)
		case vidtex.Paused:
			controls.SetPause(false)
		default:
			controls.Play()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		controls.Stop()
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		controls.SetRepeat(!controls.Repeat())
	case inpututil.IsKeyJustPressed(ebiten.KeyRight):
		controls.SetTime(controls.Time() + seekStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft):
		controls.SetTime(max(controls.Time()-seekStep, 0))
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if err := a.manager.ReloadFrom(context.Background(), a.roots); err != nil {
			a.status = err.Error()
		} else {
			a.status = fmt.Sprintf("reloaded %d videos", len(a.manager.Handles()))
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyI):
		codec := a.player.Codec()
		current := "none"
		if handle, ok := a.player.Media().CurrentMedia(); ok {
			current, _ = handle.Address()
		}
		fmt.Printf("media: %s | %dx%d @ %.2f fps, aspect %.3f | state %s\n",
			current, codec.Width(), codec.Height(), codec.FrameRate(), codec.AspectRatio(), controls.State())
	}
	return nil
}

func (a *App) Draw(canvas *ebiten.Image) {
	canvas.Fill(color.Black)
	frame := a.table.Image(a.player.TextureID())
	ebitentex.Draw(canvas, frame, a.player.Codec().AspectRatio())
	a.drawGUI(canvas)
}

func (a *App) drawGUI(canvas *ebiten.Image) {
	bounds := canvas.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	barWidth := float32(w*2) / 3
	barHeight := float32(h) / 48
	ox := (float32(w) - barWidth) / 2
	oy := float32(h) - barHeight*2

	if !a.manager.HasNatives() {
		ebitenutil.DebugPrintAt(canvas, "video natives unavailable: running headless", int(ox), int(oy)-16)
		return
	}

	controls := a.player.Controls()
	position, length := controls.Time(), controls.Length()
	const borderThickness = 3
	vector.StrokeRect(canvas, ox, oy, barWidth, barHeight, borderThickness, color.White, false)
	if length > 0 {
		t := float32(position) / float32(length)
		const innerMargin = borderThickness + 2
		vector.DrawFilledRect(canvas, ox+innerMargin, oy+innerMargin, (barWidth-2*innerMargin)*t, barHeight-2*innerMargin, color.White, false)
	}

	spaceAction := "play"
	if controls.State() == vidtex.Playing {
		spaceAction = "pause"
	}
	loopAction := "enable"
	if controls.Repeat() {
		loopAction = "disable"
	}
	info := durationToMMSS(position) + " / " + durationToMMSS(length) +
		" (SPACE to " + spaceAction + ", S to stop, L to " + loopAction + " looping, R to reload)"
	ebitenutil.DebugPrintAt(canvas, info, int(ox), int(oy)-16)
	if a.status != "" {
		ebitenutil.DebugPrintAt(canvas, a.status, int(ox), int(oy)-32)
	}
}

func durationToMMSS(duration time.Duration) string {
	seconds := int64(duration / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

var _ ebiten.LayoutFer = (*App)(nil)
