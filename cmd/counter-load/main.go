package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	vh "github.com/tckz/vegetahelper"
	"github.com/tckz/visitor-counter/internal/log"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout', empty to discard")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optURL      = flag.String("url", "http://localhost:5000/api/visitor-count", "visitor count endpoint")
	optOrigin   = flag.String("origin", "", "Origin header to send")
	optAudience = flag.String("audience", "", "aud of id token, for functions that require authentication")
	optTimeout  = flag.Duration("timeout", 30*time.Second, "timeout of each request")
	optStrict   = flag.Bool("strict", true, "exit 1 when the counter did not move by the number of successful increments")
)

func init() {
	flag.Var(optRate, "rate", "Number of requests per time unit")
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "":
		return &nopWriteCloser{io.Discard}, nil
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func main() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hc := &http.Client{Timeout: *optTimeout}
	if *optAudience != "" {
		cl, err := idtoken.NewClient(ctx, *optAudience)
		if err != nil {
			logger.Fatalf("*** idtoken.NewClient: %v", err)
		}
		cl.Timeout = *optTimeout
		hc = cl
	}
	cc := &countClient{url: *optURL, origin: *optOrigin, client: hc}

	before, err := cc.Get(ctx)
	if err != nil {
		logger.Fatalf("*** Get.before: %v", err)
	}
	logger.Infof("before=%s", humanize.Comma(before))

	var ctOK, ctFailed int64
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		if _, err := cc.Up(ctx); err != nil {
			atomic.AddInt64(&ctFailed, 1)
			return nil, err
		}
		atomic.AddInt64(&ctOK, 1)
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "visitor-count")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}

	// the attack context may be cancelled by now
	actx, acancel := context.WithTimeout(context.Background(), *optTimeout)
	defer acancel()
	after, err := cc.Get(actx)
	if err != nil {
		logger.Fatalf("*** Get.after: %v", err)
	}

	ok := atomic.LoadInt64(&ctOK)
	delta := after - before
	logger.Infof("after=%s, delta=%s, ok=%s, failed=%s",
		humanize.Comma(after), humanize.Comma(delta), humanize.Comma(ok), humanize.Comma(atomic.LoadInt64(&ctFailed)))

	if delta != ok {
		// other visitors also move the counter, so only an exclusive run can be strict
		logger.Errorf("*** counter moved by %d but %d increments succeeded", delta, ok)
		if *optStrict {
			out.Close()
			os.Exit(1)
		}
	}
}
