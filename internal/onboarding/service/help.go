package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/infra/observability"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// HelpService: FAQ answers with an optional remote assistant
// ============================================================

// helpTopic is one FAQ entry, matched when the question contains any keyword.
type helpTopic struct {
	name     string
	keywords []string
	answer   func(cat *catalog.Catalog) string
}

// Order matters: the first matching topic wins.
var helpTopics = []helpTopic{
	{
		name:     "documents",
		keywords: []string{"document", "upload"},
		answer: func(*catalog.Catalog) string {
			return "📄 Document Requirements:\n\n" +
				"For merchant onboarding, you'll need to upload:\n" +
				"• GST Certificate - Your business GST registration\n" +
				"• PAN Document - Business PAN card/certificate\n" +
				"• Incorporation Certificate - Company registration document\n" +
				"• MOA (Memorandum of Association) - Contains director and shareholding details\n\n" +
				"💡 Tip: Ensure all documents are clear, readable PDF/image files."
		},
	},
	{
		name:     "kyc",
		keywords: []string{"kyc", "verification"},
		answer: func(*catalog.Catalog) string {
			return "🔍 KYC Verification Process:\n\n" +
				"• If you're an existing customer, we'll fetch your KYC details using your mobile number\n" +
				"• For new customers, we'll extract information from your uploaded documents\n" +
				"• All documents are processed automatically to extract business details\n" +
				"• Final verification is done through OTP sent to your mobile and email\n\n" +
				"⏱️ Timeline: KYC verification typically completes within 2-4 hours."
		},
	},
	{
		name:     "timeline",
		keywords: []string{"time", "how long", "duration"},
		answer: func(*catalog.Catalog) string {
			return "⏰ Onboarding Timeline:\n\n" +
				"• Document Upload: 5-10 minutes\n" +
				"• Document Processing: Instant (automated)\n" +
				"• OTP Verification: 2-3 minutes\n" +
				"• Account Activation: 2-4 hours\n" +
				"• POS Setup: Same day after activation\n\n" +
				"📞 Your assigned representative will contact you for POS installation."
		},
	},
	{
		name:     "pricing",
		keywords: []string{"cost", "fee", "price", "charge"},
		answer: func(*catalog.Catalog) string {
			return "💰 Pricing Information:\n\n" +
				"• Onboarding: Free of charge\n" +
				"• POS Device: Provided at competitive rates\n" +
				"• Transaction Fees: Industry-standard rates based on your business category\n" +
				"• Setup Fees: Waived for most business types\n\n" +
				"💡 Your merchant representative will discuss detailed pricing based on your specific requirements."
		},
	},
	{
		name:     "services",
		keywords: []string{"pos", "payment gateway", "services"},
		answer: func(cat *catalog.Catalog) string {
			var b strings.Builder
			b.WriteString("🏪 Our Services:\n\nPOS Solutions:\n")
			for _, o := range cat.POSModels {
				fmt.Fprintf(&b, "• %s\n", o.Label)
			}
			b.WriteString("\nPayment Gateway:\n")
			for _, o := range cat.PGPlans {
				fmt.Fprintf(&b, "• %s\n", o.Label)
			}
			b.WriteString("\n📱 24/7 customer support included with all services.")
			return b.String()
		},
	},
	{
		name:     "support",
		keywords: []string{"support", "help", "contact"},
		answer: func(cat *catalog.Catalog) string {
			rep := cat.Rep()
			return "📞 Support Information:\n\n" +
				"During Onboarding:\n" +
				"• Use this chat for immediate assistance\n" +
				fmt.Sprintf("• Your assigned representative: %s (%s)\n\n", rep.Name, rep.Mobile) +
				"After Onboarding:\n" +
				fmt.Sprintf("• Email: %s\n", cat.SupportEmail) +
				"• Phone: 24/7 helpline available\n" +
				"• Live chat: Available on merchant portal\n\n" +
				"🕒 We typically respond within 15 minutes during business hours."
		},
	},
	{
		name:     "categories",
		keywords: []string{"business category", "category"},
		answer: func(cat *catalog.Catalog) string {
			var b strings.Builder
			b.WriteString("🏢 Business Categories We Support:\n\n")
			for _, c := range cat.Categories {
				fmt.Fprintf(&b, "• %s\n", c)
			}
			b.WriteString("\n💡 Each category has tailored features and pricing.")
			return b.String()
		},
	},
	{
		name:     "troubleshooting",
		keywords: []string{"error", "problem", "issue"},
		answer: func(cat *catalog.Catalog) string {
			rep := cat.Rep()
			return "🔧 Common Issues & Solutions:\n\n" +
				"Document Upload Issues:\n" +
				"• Ensure file size is under 10MB\n" +
				"• Use PDF, JPG, or PNG formats\n" +
				"• Check internet connection\n\n" +
				"OTP Not Received:\n" +
				"• Check spam/junk folder\n" +
				"• Verify mobile number is correct\n" +
				"• Use the resend option\n\n" +
				fmt.Sprintf("Need More Help? Contact %s at %s", rep.Name, rep.Mobile)
		},
	},
}

func defaultHelp(cat *catalog.Catalog) string {
	rep := cat.Rep()
	return "🤖 AI Assistant Help\n\n" +
		"I can help you with questions about:\n" +
		"• Document requirements and upload process\n" +
		"• KYC verification steps\n" +
		"• Timeline and duration\n" +
		"• Pricing and fees\n" +
		"• POS and payment gateway services\n" +
		"• Support and contact information\n" +
		"• Business categories\n" +
		"• Troubleshooting common issues\n\n" +
		"❓ Try asking: \"What documents do I need?\" or \"How long does onboarding take?\"\n\n" +
		fmt.Sprintf("For specific technical issues, contact %s at %s", rep.Name, rep.Mobile)
}

// StepLookup resolves the current step of a session for the help context.
type StepLookup interface {
	Step(sessionID string) (odomain.Step, bool)
}

// HelpService answers help-panel questions. Questions that match a FAQ
// topic are answered locally; the rest go to the remote agent when one is
// configured, falling back to the generic answer when it fails.
type HelpService struct {
	catalog  *catalog.Catalog
	agent    port.HelpAgent
	sessions StepLookup
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewHelpService creates the service. agent and sessions may be nil.
func NewHelpService(cat *catalog.Catalog, agent port.HelpAgent, sessions StepLookup, metrics *observability.Metrics, logger *zap.Logger) *HelpService {
	return &HelpService{
		catalog:  cat,
		agent:    agent,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Ask answers req.
func (h *HelpService) Ask(ctx context.Context, req *odomain.HelpRequest) (*odomain.HelpAnswer, error) {
	ctx, span := tracer.Start(ctx, "HelpService.Ask")
	defer span.End()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &domain.ErrValidation{Field: "query", Message: "required"}
	}

	if topic, ok := matchTopic(query); ok {
		h.metrics.IncrHelpAnswer("faq")
		return &odomain.HelpAnswer{Answer: topic.answer(h.catalog), Topic: topic.name}, nil
	}

	if h.agent != nil {
		agentReq := &odomain.AgentRequest{Query: query, Context: "merchant-onboarding"}
		if h.sessions != nil && req.SessionID != "" {
			if step, ok := h.sessions.Step(req.SessionID); ok {
				agentReq.Step = string(step)
			}
		}

		resp, err := h.agent.SendChat(ctx, agentReq)
		if err == nil && strings.TrimSpace(resp.Answer) != "" {
			h.metrics.IncrHelpAnswer("agent")
			h.metrics.RecordTokens("help-agent", resp.TokensUsed)
			return &odomain.HelpAnswer{Answer: resp.Answer, Topic: "agent"}, nil
		}
		if err != nil {
			h.logger.Warn("help agent failed, using default answer", zap.Error(err))
			h.metrics.IncrExternalError("help-agent")
		}
	}

	h.metrics.IncrHelpAnswer("default")
	return &odomain.HelpAnswer{Answer: defaultHelp(h.catalog), Topic: "default"}, nil
}

func matchTopic(query string) (helpTopic, bool) {
	lower := strings.ToLower(query)
	for _, t := range helpTopics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t, true
			}
		}
	}
	return helpTopic{}, false
}
