package render

import "html/template"

var pageTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"mdBold":    mdBold,
	"narrative": narrative,
}).Parse(`{{define "chart"}}{{if .}}{{range .}}<div class="bar-row">
            <div class="bar-label">{{.Label}}</div>
            <div class="bar-track"><div class="bar-fill" style="width:{{printf "%.1f" .Pct}}%;background:{{.Color}}"></div></div>
            <div class="bar-value">{{.Value}}</div>
        </div>
{{end}}{{else}}<p class="empty">No data</p>{{end}}{{end}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Claude Code Enhanced Insights</title>
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&display=swap" rel="stylesheet">
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Inter', -apple-system, sans-serif; background: #f8fafc; color: #0f172a; line-height: 1.6; padding: 40px 20px; }
.container { max-width: 900px; margin: 0 auto; }
h1 { font-size: 28px; font-weight: 700; margin-bottom: 4px; }
h2 { font-size: 20px; font-weight: 600; margin: 36px 0 16px; color: #1e293b; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px; }
h3 { font-size: 16px; font-weight: 600; margin: 24px 0 12px; color: #334155; }
.subtitle { color: #64748b; font-size: 14px; margin-bottom: 24px; }
.enhanced-badge { display: inline-block; background: #dbeafe; color: #1e40af; font-size: 11px; font-weight: 600; padding: 2px 8px; border-radius: 4px; margin-left: 8px; }
.at-a-glance { background: linear-gradient(135deg, #fef3c7, #fde68a); border-radius: 12px; padding: 24px; margin: 24px 0; }
.glance-title { font-size: 18px; font-weight: 700; margin-bottom: 16px; color: #92400e; }
.glance-section { margin-bottom: 12px; font-size: 14px; color: #78350f; line-height: 1.7; }
.stats-row { display: flex; gap: 16px; flex-wrap: wrap; margin: 20px 0; }
.stat-box { background: white; border: 1px solid #e2e8f0; border-radius: 8px; padding: 16px; flex: 1; min-width: 120px; text-align: center; }
.stat-value { font-size: 24px; font-weight: 700; color: #1e293b; }
.stat-label { font-size: 12px; color: #64748b; margin-top: 4px; }
.chart-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 24px; margin: 20px 0; }
.chart-box { background: white; border: 1px solid #e2e8f0; border-radius: 8px; padding: 20px; }
.chart-title { font-size: 14px; font-weight: 600; color: #334155; margin-bottom: 12px; }
.bar-row { display: flex; align-items: center; margin-bottom: 6px; font-size: 13px; }
.bar-label { width: 140px; flex-shrink: 0; color: #475569; white-space: nowrap; overflow: hidden; text-overflow: ellipsis; }
.bar-track { flex: 1; height: 18px; background: #f1f5f9; border-radius: 4px; overflow: hidden; margin: 0 8px; }
.bar-fill { height: 100%; border-radius: 4px; transition: width 0.3s; }
.bar-value { width: 36px; text-align: right; color: #64748b; font-weight: 500; }
.project-areas, .big-wins, .friction-categories, .features-section, .patterns-section, .horizon-section { display: flex; flex-direction: column; gap: 12px; }
.project-area { background: white; border: 1px solid #e2e8f0; border-radius: 8px; padding: 16px; }
.area-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 6px; }
.area-name { font-weight: 600; color: #1e293b; }
.area-count { font-size: 12px; color: #64748b; }
.area-desc { font-size: 13px; color: #475569; }
.big-win { background: #f0fdf4; border: 1px solid #bbf7d0; border-radius: 8px; padding: 16px; }
.big-win-title { font-weight: 600; color: #166534; margin-bottom: 6px; }
.big-win-desc { font-size: 13px; color: #15803d; }
.friction-category { background: #fef2f2; border: 1px solid #fecaca; border-radius: 8px; padding: 16px; }
.friction-title { font-weight: 600; color: #991b1b; margin-bottom: 6px; }
.friction-desc { font-size: 13px; color: #7f1d1d; margin-bottom: 8px; }
.friction-examples { font-size: 12px; color: #991b1b; padding-left: 20px; }
.friction-examples li { margin-bottom: 4px; }
.claude-md-section { background: #eff6ff; border: 1px solid #bfdbfe; border-radius: 8px; padding: 16px; }
.claude-md-item { margin-bottom: 12px; }
.cmd-code { display: block; background: #1e293b; color: #e2e8f0; padding: 10px 12px; border-radius: 6px; font-size: 12px; font-family: monospace; white-space: pre-wrap; margin-bottom: 4px; }
.cmd-why { font-size: 12px; color: #1e40af; }
.feature-card { background: #f0fdf4; border: 1px solid #bbf7d0; border-radius: 8px; padding: 16px; }
.feature-title { font-weight: 600; color: #166534; }
.feature-oneliner { font-size: 13px; color: #15803d; margin: 4px 0; }
.feature-why { font-size: 13px; color: #166534; margin: 6px 0; }
.feature-examples { margin-top: 8px; }
.example-code { display: block; background: #1e293b; color: #e2e8f0; padding: 8px 12px; border-radius: 6px; font-size: 12px; font-family: monospace; }
.pattern-card { background: #eff6ff; border: 1px solid #bfdbfe; border-radius: 8px; padding: 16px; }
.pattern-title { font-weight: 600; color: #1e40af; }
.pattern-summary { font-size: 13px; color: #1e3a8a; margin: 4px 0; }
.pattern-detail { font-size: 13px; color: #334155; margin: 8px 0; }
.horizon-card { background: linear-gradient(135deg, #f5f3ff, #ede9fe); border: 1px solid #c4b5fd; border-radius: 8px; padding: 16px; }
.horizon-title { font-weight: 600; color: #5b21b6; }
.horizon-possible { font-size: 13px; color: #6d28d9; margin: 6px 0; }
.horizon-tip { font-size: 13px; color: #7c3aed; margin: 6px 0; }
.copyable-prompt-section { margin-top: 8px; }
.prompt-label { font-size: 11px; color: #64748b; margin-bottom: 4px; }
.copyable-prompt { display: block; background: #1e293b; color: #e2e8f0; padding: 8px 12px; border-radius: 6px; font-size: 12px; font-family: monospace; white-space: pre-wrap; }
.narrative p { margin-bottom: 12px; font-size: 14px; color: #334155; }
.key-insight { background: #fef3c7; border-radius: 6px; padding: 12px; margin-top: 12px; font-size: 14px; color: #92400e; }
.section-intro { font-size: 14px; color: #64748b; margin-bottom: 16px; }
.fun-ending { background: linear-gradient(135deg, #fdf2f8, #fce7f3); border: 1px solid #f9a8d4; border-radius: 12px; padding: 24px; margin: 36px 0; text-align: center; }
.fun-headline { font-size: 18px; font-weight: 700; color: #9d174d; margin-bottom: 8px; }
.fun-detail { font-size: 14px; color: #be185d; }
.empty { color: #94a3b8; font-style: italic; font-size: 13px; }
.footer { text-align: center; color: #94a3b8; font-size: 12px; margin-top: 48px; padding-top: 24px; border-top: 1px solid #e2e8f0; }
@media (max-width: 640px) { .chart-grid { grid-template-columns: 1fr; } .stats-row { flex-direction: column; } .bar-label { width: 100px; } }
</style>
</head>
<body>
<div class="container">

<h1>Claude Code Insights <span class="enhanced-badge">ENHANCED</span></h1>
<p class="subtitle">{{.StatsLine}}<br>{{.DateStart}} to {{.DateEnd}}</p>

{{if .Glance}}<div class="at-a-glance">
    <div class="glance-title">At a Glance</div>
    <div class="glance-sections">
        {{if .Glance.WhatsWorking}}<div class="glance-section"><strong>What&#39;s working:</strong> {{mdBold .Glance.WhatsWorking}}</div>{{end}}
        {{if .Glance.WhatsHindering}}<div class="glance-section"><strong>What&#39;s hindering you:</strong> {{mdBold .Glance.WhatsHindering}}</div>{{end}}
        {{if .Glance.QuickWins}}<div class="glance-section"><strong>Quick wins to try:</strong> {{mdBold .Glance.QuickWins}}</div>{{end}}
        {{if .Glance.AmbitiousWorkflows}}<div class="glance-section"><strong>Ambitious workflows:</strong> {{mdBold .Glance.AmbitiousWorkflows}}</div>{{end}}
    </div></div>{{end}}

<div class="stats-row">
    <div class="stat-box"><div class="stat-value">{{.Messages}}</div><div class="stat-label">Messages</div></div>
    <div class="stat-box"><div class="stat-value">{{.LinesAdded}}</div><div class="stat-label">Lines Added</div></div>
    <div class="stat-box"><div class="stat-value">{{.FilesModified}}</div><div class="stat-label">Files Modified</div></div>
    <div class="stat-box"><div class="stat-value">{{.DaysActive}}</div><div class="stat-label">Days Active</div></div>
    <div class="stat-box"><div class="stat-value">{{.MessagesPerDay}}</div><div class="stat-label">Msgs/Day</div></div>
</div>

{{if .Areas}}{{if .Areas.Areas}}<h2 id="section-work">What You Work On</h2><div class="project-areas">
{{range .Areas.Areas}}<div class="project-area">
    <div class="area-header"><span class="area-name">{{.Name}}</span>
    <span class="area-count">~{{.SessionCount}} sessions</span></div>
    <div class="area-desc">{{.Description}}</div>
</div>
{{end}}</div>{{end}}{{end}}

{{if .Style}}{{if .Style.Narrative}}<h2 id="section-usage">How You Use Claude Code</h2>
<div class="narrative">{{narrative .Style.Narrative}}
{{if .Style.KeyPattern}}<div class="key-insight"><strong>Key pattern:</strong> {{.Style.KeyPattern}}</div>{{end}}
</div>{{end}}{{end}}

<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">What You Wanted</div>{{template "chart" .GoalsChart}}</div>
    <div class="chart-box"><div class="chart-title">Top Tools Used</div>{{template "chart" .ToolsChart}}</div>
</div>
<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">Languages</div>{{template "chart" .LangsChart}}</div>
    <div class="chart-box"><div class="chart-title">Session Types</div>{{template "chart" .TypesChart}}</div>
</div>

{{if .Wins}}{{if .Wins.ImpressiveWorkflows}}<h2 id="section-wins">Impressive Things You Did</h2>
{{if .Wins.Intro}}<p class="section-intro">{{.Wins.Intro}}</p>{{end}}
<div class="big-wins">
{{range .Wins.ImpressiveWorkflows}}<div class="big-win">
    <div class="big-win-title">{{.Title}}</div>
    <div class="big-win-desc">{{.Description}}</div>
</div>
{{end}}</div>{{end}}{{end}}

<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">What Helped Most</div>{{template "chart" .SuccessChart}}</div>
    <div class="chart-box"><div class="chart-title">Outcomes</div>{{template "chart" .OutcomesChart}}</div>
</div>

{{if .Friction}}{{if .Friction.Categories}}<h2 id="section-friction">Where Things Go Wrong</h2>
{{if .Friction.Intro}}<p class="section-intro">{{.Friction.Intro}}</p>{{end}}
<div class="friction-categories">
{{range .Friction.Categories}}<div class="friction-category">
    <div class="friction-title">{{.Category}}</div>
    <div class="friction-desc">{{.Description}}</div>
    {{if .Examples}}<ul class="friction-examples">{{range .Examples}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>
{{end}}</div>{{end}}{{end}}

<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">Primary Friction Types</div>{{template "chart" .FrictionChart}}</div>
    <div class="chart-box"><div class="chart-title">Inferred Satisfaction</div>{{template "chart" .SatisfactionChart}}</div>
</div>
<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">Claude Helpfulness</div>{{template "chart" .HelpfulnessChart}}</div>
    <div class="chart-box"><div class="chart-title">Response Time Distribution</div>{{template "chart" .ResponseChart}}</div>
</div>
<div class="chart-grid">
    <div class="chart-box"><div class="chart-title">Time of Day</div>{{template "chart" .TimeOfDayChart}}</div>
    <div class="chart-box"><div class="chart-title">Tool Errors</div>{{template "chart" .ErrorsChart}}</div>
</div>

{{if .Suggestions}}{{if .Suggestions.ClaudeMDAdditions}}<h2 id="section-features">Suggested CLAUDE.md Additions</h2>
<div class="claude-md-section">
{{range .Suggestions.ClaudeMDAdditions}}<div class="claude-md-item">
    <code class="cmd-code">{{.Addition}}</code>
    <div class="cmd-why">{{.Why}}</div>
</div>
{{end}}</div>{{end}}
{{if .Suggestions.FeaturesToTry}}<h3>Features to Try</h3><div class="features-section">
{{range .Suggestions.FeaturesToTry}}<div class="feature-card">
    <div class="feature-title">{{.Feature}}</div>
    <div class="feature-oneliner">{{.OneLiner}}</div>
    <div class="feature-why"><strong>Why for you:</strong> {{.WhyForYou}}</div>
    {{if .ExampleCode}}<div class="feature-examples"><code class="example-code">{{.ExampleCode}}</code></div>{{end}}
</div>
{{end}}</div>{{end}}
{{if .Suggestions.UsagePatterns}}<h2 id="section-patterns">New Ways to Use Claude Code</h2>
<div class="patterns-section">
{{range .Suggestions.UsagePatterns}}<div class="pattern-card">
    <div class="pattern-title">{{.Title}}</div>
    <div class="pattern-summary">{{.Suggestion}}</div>
    {{if .Detail}}<div class="pattern-detail">{{.Detail}}</div>{{end}}
    {{if .CopyablePrompt}}<div class="copyable-prompt-section"><div class="prompt-label">Try this prompt:</div><code class="copyable-prompt">{{.CopyablePrompt}}</code></div>{{end}}
</div>
{{end}}</div>{{end}}{{end}}

{{if .Horizon}}{{if .Horizon.Opportunities}}<h2 id="section-horizon">On the Horizon</h2>
{{if .Horizon.Intro}}<p class="section-intro">{{.Horizon.Intro}}</p>{{end}}
<div class="horizon-section">
{{range .Horizon.Opportunities}}<div class="horizon-card">
    <div class="horizon-title">{{.Title}}</div>
    <div class="horizon-possible">{{.WhatsPossible}}</div>
    {{if .HowToTry}}<div class="horizon-tip"><strong>Getting started:</strong> {{.HowToTry}}</div>{{end}}
    {{if .CopyablePrompt}}<div class="copyable-prompt-section"><code class="copyable-prompt">{{.CopyablePrompt}}</code></div>{{end}}
</div>
{{end}}</div>{{end}}{{end}}

{{if .Fun}}<div class="fun-ending">
    <div class="fun-headline">{{.Fun.Headline}}</div>
    <div class="fun-detail">{{.Fun.Detail}}</div>
</div>{{end}}

<div class="footer">
    Generated by Enhanced Insights &middot; {{.GeneratedAt}} &middot; Model: {{.Model}}
</div>

</div>
</body>
</html>`))
