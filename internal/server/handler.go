package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
)

type handler struct {
	bars   BarStore
	jobSvc *job.Service
}

type barResponse struct {
	Date   string  `json:"date"`
	Open   float32 `json:"open"`
	High   float32 `json:"high"`
	Low    float32 `json:"low"`
	Close  float32 `json:"close"`
	Price  float32 `json:"price"`
	Volume int64   `json:"volume"`
}

type barsResponse struct {
	Ticker string        `json:"ticker"`
	Bars   []barResponse `json:"bars"`
}

type tickerResponse struct {
	Ticker string `json:"ticker"`
	Bars   int    `json:"bars"`
	First  string `json:"first"`
	Last   string `json:"last"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listTickers(w http.ResponseWriter, r *http.Request) {
	sums, err := h.bars.Tickers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	out := make([]tickerResponse, 0, len(sums))
	for _, s := range sums {
		out = append(out, tickerResponse{
			Ticker: s.Ticker,
			Bars:   s.Bars,
			First:  s.First.Format(history.DateFormat),
			Last:   s.Last.Format(history.DateFormat),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getBars(w http.ResponseWriter, r *http.Request) {
	symbol, err := history.NewSymbol(r.PathValue("symbol"))
	if err != nil {
		writeErr(w, err)
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(history.DateFormat, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from format, expected YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(history.DateFormat, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to format, expected YYYY-MM-DD")
			return
		}
	}
	if !from.IsZero() && !to.IsZero() {
		if _, err := history.NewDateRange(from, to); err != nil {
			writeErr(w, err)
			return
		}
	}

	tbl, err := h.bars.ListBars(r.Context(), symbol.String(), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, tbl)
		return
	}

	resp := barsResponse{Ticker: tbl.Ticker, Bars: make([]barResponse, 0, tbl.Len())}
	for _, b := range tbl.Bars {
		resp.Bars = append(resp.Bars, barResponse{
			Date: b.Date.Format(history.DateFormat),
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Price: b.Price,
			Volume: b.Volume,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	j, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := job.ListJobsRequest{
		Technical: q.Get("technical"),
		Symbol:    q.Get("symbol"),
		Status:    q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.jobSvc.List(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}

	writeJSON(w, http.StatusOK, jobs)
}
