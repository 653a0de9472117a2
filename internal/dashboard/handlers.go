package dashboard

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"PairSentinel/internal/model"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

type pairJSON struct {
	Rank          int     `json:"rank"`
	Sym1          string  `json:"sym_1"`
	Sym2          string  `json:"sym_2"`
	PValue        float64 `json:"p_value"`
	TValue        float64 `json:"t_value"`
	CValue        float64 `json:"c_value"`
	HedgeRatio    float64 `json:"hedge_ratio"`
	ZeroCrossings int     `json:"zero_crossings"`
}

type pairsResponse struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Total       int        `json:"total"`
	Count       int        `json:"count"`
	Pairs       []pairJSON `json:"pairs"`
}

type runJSON struct {
	OK           bool      `json:"ok"`
	Reason       string    `json:"reason"`
	RunID        string    `json:"run_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Symbols      int       `json:"symbols"`
	Eligible     int       `json:"eligible"`
	PairsTested  int       `json:"pairs_tested"`
	Failed       int       `json:"failed"`
	Cointegrated int       `json:"cointegrated"`
}

type statusResponse struct {
	Running bool     `json:"running"`
	LastRun *runJSON `json:"last_run"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func toPairs(rows []model.CointegrationResult) []pairJSON {
	out := make([]pairJSON, len(rows))
	for i, r := range rows {
		out[i] = pairJSON{
			Rank:          i + 1,
			Sym1:          r.Sym1,
			Sym2:          r.Sym2,
			PValue:        r.PValue,
			TValue:        r.TValue,
			CValue:        r.CValue,
			HedgeRatio:    r.HedgeRatio,
			ZeroCrossings: r.ZeroCrossings,
		}
	}
	return out
}

func toRun(st *screener.Status) *runJSON {
	if st == nil {
		return nil
	}
	out := &runJSON{OK: st.OK, Reason: st.Reason}
	if rep := st.Report; rep != nil {
		out.RunID = rep.RunID
		out.StartedAt = rep.StartedAt
		out.DurationMS = rep.Duration.Milliseconds()
		out.Symbols = rep.Symbols
		out.Eligible = rep.Eligible
		out.PairsTested = rep.PairsTested
		out.Failed = rep.Failed
		out.Cointegrated = rep.Cointegrated
	}
	return out
}

// loadTable returns the persisted table, or nil when no run has saved one yet.
func (s *Server) loadTable(r *http.Request) (*model.ResultTable, error) {
	table, err := s.recorder.LoadTable(r.Context())
	if errors.Is(err, recorder.ErrNoTable) {
		return nil, nil
	}
	return table, err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pairs serves GET /api/pairs?limit=N. Without limit the configured top N is used.
func (s *Server) pairs(w http.ResponseWriter, r *http.Request) {
	limit := s.topN
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	table, err := s.loadTable(r)
	if err != nil {
		log.Error().Err(err).Msg("load result table")
		writeError(w, http.StatusInternalServerError, "could not load result table")
		return
	}
	if table == nil {
		writeError(w, http.StatusNotFound, "no result table yet")
		return
	}
	rows := table.Top(limit)
	writeJSON(w, http.StatusOK, pairsResponse{
		GeneratedAt: table.GeneratedAt,
		Total:       table.Len(),
		Count:       len(rows),
		Pairs:       toPairs(rows),
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}
	if s.pipeline != nil {
		resp.Running = s.pipeline.Running()
		resp.LastRun = toRun(s.pipeline.LastStatus())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	if err := s.pipeline.TriggerAsync(r.Context()); err != nil {
		if errors.Is(err, screener.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) downloadPairs(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		log.Error().Err(err).Msg("load result table")
		writeError(w, http.StatusInternalServerError, "could not load result table")
		return
	}
	if table == nil {
		writeError(w, http.StatusNotFound, "no result table yet")
		return
	}
	var buf bytes.Buffer
	if err := recorder.WriteCSV(&buf, table); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="cointegrated_pairs.csv"`)
	w.Write(buf.Bytes())
}

func (s *Server) downloadPrices(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.pricesPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no price document yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not open price document")
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not stat price document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="price_list.json"`)
	http.ServeContent(w, r, "price_list.json", st.ModTime(), f)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>PairSentinel</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 10px; border-bottom: 1px solid #ddd; text-align: right; }
th:nth-child(2), td:nth-child(2) { text-align: left; }
</style>
</head>
<body>
<h1>PairSentinel</h1>
{{with .Last}}<p>Last run: {{if .OK}}ok{{else}}failed{{end}}, {{.Reason}}</p>{{end}}
{{if .Running}}<p>A run is in progress.</p>{{end}}
{{if .Table}}
<p>Generated {{.Table.GeneratedAt.Format "2006-01-02 15:04:05"}}, {{.Table.Len}} cointegrated pairs.
<a href="/download/pairs.csv">Download CSV</a></p>
<table>
<tr><th>#</th><th>pair</th><th>p-value</th><th>t-value</th><th>crit 5%</th><th>hedge ratio</th><th>zero crossings</th></tr>
{{range .Rows}}<tr><td>{{.Rank}}</td><td>{{.Sym1}}/{{.Sym2}}</td><td>{{printf "%.4f" .PValue}}</td><td>{{printf "%.4f" .TValue}}</td><td>{{printf "%.4f" .CValue}}</td><td>{{printf "%.4f" .HedgeRatio}}</td><td>{{.ZeroCrossings}}</td></tr>
{{end}}</table>
{{else}}
<p>No result table yet.</p>
{{end}}
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		log.Error().Err(err).Msg("load result table")
		http.Error(w, "could not load result table", http.StatusInternalServerError)
		return
	}
	data := struct {
		Table   *model.ResultTable
		Rows    []pairJSON
		Last    *screener.Status
		Running bool
	}{Table: table}
	if table != nil {
		data.Rows = toPairs(table.Top(s.topN))
	}
	if s.pipeline != nil {
		data.Last = s.pipeline.LastStatus()
		data.Running = s.pipeline.Running()
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("render index")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
