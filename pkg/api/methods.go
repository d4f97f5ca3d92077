package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"time"

	"github.com/jbeda/geom"

	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/log"
	"bentcrank-plotter/pkg/pool"
)

// Request limits.
const (
	maxPathPoints    = 100000
	minWorkspaceStep = 0.1
	defaultWorkspace = 1.0
)

func (s *Server) methodTable() map[string]methodFunc {
	return map[string]methodFunc{
		"server.info":                s.methodServerInfo,
		"server.connection.identify": s.methodIdentify,
		"server.history.list":        s.methodHistoryList,
		"server.history.get_job":     s.methodHistoryJob,
		"server.history.totals":      s.methodHistoryTotals,
		"kinematics.status":          s.methodStatus,
		"kinematics.forward":         s.methodForward,
		"kinematics.inverse":         s.methodInverse,
		"kinematics.path":            s.methodPath,
		"kinematics.forward_path":    s.methodForwardPath,
		"kinematics.config.get":      s.methodConfigGet,
		"kinematics.config.set":      s.methodConfigSet,
		"kinematics.config.save":     s.methodConfigSave,
		"kinematics.workspace":       s.methodWorkspace,
	}
}

// Wire types

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func toPoint(c geom.Coord) point { return point{X: c.X, Y: c.Y} }

type poseResponse struct {
	Pen        point `json:"pen"`
	LeftAxis   point `json:"left_axis"`
	RightAxis  point `json:"right_axis"`
	LeftElbow  point `json:"left_elbow"`
	RightElbow point `json:"right_elbow"`
}

type forwardResponse struct {
	Found   bool          `json:"found"`
	Outcome string        `json:"outcome"`
	Pose    *poseResponse `json:"pose,omitempty"`
}

func newForwardResponse(r kinematics.ForwardResult) forwardResponse {
	resp := forwardResponse{Found: r.Found(), Outcome: r.Outcome.String()}
	if r.Found() {
		p := r.Pose
		resp.Pose = &poseResponse{
			Pen:        toPoint(p.Pen),
			LeftAxis:   toPoint(p.LeftAxis),
			RightAxis:  toPoint(p.RightAxis),
			LeftElbow:  toPoint(p.LeftElbow),
			RightElbow: toPoint(p.RightElbow),
		}
	}
	return resp
}

type inverseResponse struct {
	Found   bool                  `json:"found"`
	Outcome string                `json:"outcome"`
	Servos  *kinematics.ServoPair `json:"servos,omitempty"`
}

func newInverseResponse(r kinematics.InverseResult) inverseResponse {
	resp := inverseResponse{Found: r.Found(), Outcome: r.Outcome.String()}
	if r.Outcome != kinematics.Unreachable {
		servos := r.Servos
		resp.Servos = &servos
	}
	return resp
}

type derivedResponse struct {
	EffectiveCrankLength float64 `json:"effective_crank_length"`
	PhaseOffsetRadians   float64 `json:"phase_offset_radians"`
	PhaseOffsetDegrees   float64 `json:"phase_offset_degrees"`
}

type configResponse struct {
	Kinematics string            `json:"kinematics"`
	Config     kinematics.Config `json:"config"`
	Derived    derivedResponse   `json:"derived"`
}

func newConfigResponse(cfg kinematics.Config, d kinematics.Derived) configResponse {
	return configResponse{
		Kinematics: kinematics.TypeBentCrank,
		Config:     cfg,
		Derived: derivedResponse{
			EffectiveCrankLength: d.EffectiveCrankLength,
			PhaseOffsetRadians:   d.PhaseOffsetRadians,
			PhaseOffsetDegrees:   d.PhaseOffsetDegrees(),
		},
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func isCancelled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// Server methods

func (s *Server) methodServerInfo(context.Context, json.RawMessage, *wsClient) (any, error) {
	s.wsClientMu.RLock()
	wsCount := len(s.wsClients)
	s.wsClientMu.RUnlock()

	info := map[string]any{
		"state":                "ready",
		"kinematics":           s.solver.GetType(),
		"supported_kinematics": kinematics.SupportedTypes(),
		"api_version":          APIVersion,
		"hostname":             hostname(),
		"uptime":               time.Since(s.startTime).Seconds(),
		"websocket_count":      wsCount,
		"config_file":          s.configFile,
		"config_save":          s.save != nil,
		"servo_link":           s.link != nil,
	}
	if s.link != nil {
		info["servo_commands"] = s.link.Sent()
	}
	return info, nil
}

func (s *Server) methodIdentify(_ context.Context, params json.RawMessage, client *wsClient) (any, error) {
	var p struct {
		ClientName string `json:"client_name"`
		Version    string `json:"version"`
		Type       string `json:"type"`
		URL        string `json:"url"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, invalidParams("identify requires a websocket connection")
	}
	if p.ClientName == "" {
		p.ClientName = "unknown"
	}
	client.name = p.ClientName
	s.logger.WithFields(log.Fields{"client": client.id, "name": p.ClientName}).Info("websocket client identified")
	return map[string]any{"connection_id": client.id}, nil
}

func (s *Server) methodHistoryList(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	p := struct {
		Limit float64 `json:"limit"`
		Start float64 `json:"start"`
	}{Limit: 50}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	jobs := s.history.List(int(p.Limit), int(p.Start))
	return map[string]any{"count": len(jobs), "jobs": jobs}, nil
}

func (s *Server) methodHistoryJob(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var p struct {
		JobID string `json:"job_id"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	job, err := s.history.Get(p.JobID)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	return map[string]any{"job": job}, nil
}

func (s *Server) methodHistoryTotals(context.Context, json.RawMessage, *wsClient) (any, error) {
	return map[string]any{"job_totals": s.history.Totals()}, nil
}

// Kinematics methods

func (s *Server) methodStatus(context.Context, json.RawMessage, *wsClient) (any, error) {
	return s.solver.GetStatus(), nil
}

func (s *Server) methodForward(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var p struct {
		Left  *float64 `json:"left"`
		Right *float64 `json:"right"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Left == nil || p.Right == nil {
		return nil, invalidParams("'left' and 'right' are required")
	}
	if !finite(*p.Left, *p.Right) {
		return nil, invalidParams("servo angles must be finite")
	}
	return newForwardResponse(s.solver.Forward(*p.Left, *p.Right)), nil
}

func (s *Server) methodInverse(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var p struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.X == nil || p.Y == nil {
		return nil, invalidParams("'x' and 'y' are required")
	}
	if !finite(*p.X, *p.Y) {
		return nil, invalidParams("coordinates must be finite")
	}
	return newInverseResponse(s.solver.Inverse(geom.Coord{X: *p.X, Y: *p.Y})), nil
}

type pathResponse struct {
	JobID   string                 `json:"job_id"`
	Results []inverseResponse      `json:"results"`
	Summary kinematics.PathSummary `json:"summary"`
	Sent    int                    `json:"sent"`
	Skipped int                    `json:"skipped"`
}

func (s *Server) methodPath(ctx context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var p struct {
		Points [][2]float64 `json:"points"`
		Send   bool         `json:"send"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Points) > maxPathPoints {
		return nil, invalidParams("too many points")
	}
	if p.Send && s.link == nil {
		return nil, errors.APIRequestError("kinematics.path", "no servo link configured")
	}

	start := time.Now()
	pts := pool.GetCoordSlice(len(p.Points))
	defer pool.PutCoordSlice(pts)
	for _, xy := range p.Points {
		if !finite(xy[0], xy[1]) {
			return nil, invalidParams("coordinates must be finite")
		}
		*pts = append(*pts, geom.Coord{X: xy[0], Y: xy[1]})
	}

	results, err := s.solver.InversePath(ctx, *pts, s.workers)
	if err != nil {
		s.history.Record(start, kinematics.PathSummary{Total: len(p.Points)}, p.Send, 0, 0, err)
		return nil, err
	}
	summary := kinematics.SummarizeInverse(results)

	var sent, skipped int
	if p.Send {
		sent, skipped, err = s.link.SendPath(results)
		if s.metrics != nil {
			s.metrics.RecordServoCommands(sent)
		}
	}
	job := s.history.Record(start, summary, p.Send, sent, skipped, err)
	if err != nil {
		return nil, err
	}

	resp := pathResponse{
		JobID:   job.JobID,
		Results: make([]inverseResponse, len(results)),
		Summary: summary,
		Sent:    sent,
		Skipped: skipped,
	}
	for i, r := range results {
		resp.Results[i] = newInverseResponse(r)
	}
	return resp, nil
}

func (s *Server) methodForwardPath(ctx context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var p struct {
		Servos [][2]float64 `json:"servos"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Servos) > maxPathPoints {
		return nil, invalidParams("too many servo pairs")
	}
	pairs := make([]kinematics.ServoPair, len(p.Servos))
	for i, lr := range p.Servos {
		if !finite(lr[0], lr[1]) {
			return nil, invalidParams("servo angles must be finite")
		}
		pairs[i] = kinematics.ServoPair{Left: lr[0], Right: lr[1]}
	}

	results, err := s.solver.ForwardPath(ctx, pairs, s.workers)
	if err != nil {
		return nil, err
	}
	out := make([]forwardResponse, len(results))
	for i, r := range results {
		out[i] = newForwardResponse(r)
	}
	return map[string]any{
		"results": out,
		"summary": kinematics.SummarizeForward(results),
	}, nil
}

func (s *Server) methodConfigGet(context.Context, json.RawMessage, *wsClient) (any, error) {
	return newConfigResponse(s.solver.Config(), s.solver.Derived()), nil
}

func (s *Server) methodConfigSet(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	var u kinematics.Update
	if err := decodeParams(params, &u); err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, invalidParams("no configuration fields given")
	}
	if err := s.solver.Configure(u); err != nil {
		return nil, err
	}
	return newConfigResponse(s.solver.Config(), s.solver.Derived()), nil
}

func (s *Server) methodConfigSave(context.Context, json.RawMessage, *wsClient) (any, error) {
	if s.save == nil {
		return nil, &rpcError{Code: codeServerError, Message: "saving the configuration is not available"}
	}
	cfg := s.solver.Config()
	if err := s.save(cfg); err != nil {
		s.logger.WithError(err).Error("saving configuration failed")
		return nil, &rpcError{Code: codeServerError, Message: err.Error()}
	}
	s.logger.WithField("file", s.configFile).Info("configuration saved")
	return map[string]any{"saved": true, "config": cfg}, nil
}

type boundsResponse struct {
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	MaxX   float64 `json:"max_x"`
	MaxY   float64 `json:"max_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) methodWorkspace(_ context.Context, params json.RawMessage, _ *wsClient) (any, error) {
	p := struct {
		Step float64 `json:"step"`
	}{Step: defaultWorkspace}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if !(p.Step >= minWorkspaceStep) || math.IsInf(p.Step, 0) {
		return nil, invalidParams("step must be at least 0.1 degrees")
	}

	rep := kinematics.Workspace(s.solver, p.Step)
	resp := map[string]any{
		"step":        rep.Step,
		"samples":     rep.Samples,
		"reachable":   rep.Reachable,
		"unreachable": rep.Unreachable,
	}
	if !rep.Empty() {
		b := rep.Bounds
		resp["bounds"] = boundsResponse{
			MinX: b.Min.X, MinY: b.Min.Y, MaxX: b.Max.X, MaxY: b.Max.Y,
			Width: b.Width(), Height: b.Height(),
		}
	}
	return resp, nil
}
