package flow

import (
	"fmt"
	"strings"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/catalog"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
)

const (
	msgWelcome       = "Welcome to our Merchant Onboarding! 🎉 I'll help you get set up with our POS and Payment Gateway services."
	msgWelcomeChoice = "Would you like to start a new application or check the status of an existing one?"
	msgAskName       = "What's your full name?"
	msgAskBusiness   = "Nice to meet you, %s! What's your business name?"
	msgAskEmail      = "Great! What's your business email address?"
	msgAskService    = "Perfect! Which service are you interested in?"
	msgReturning     = "Welcome back! Would you like to continue with your saved details or start fresh?"
	msgRestored      = "Welcome back, %s! I've restored your saved details. Let's confirm the service you need."
	msgRestoreFailed = "I couldn't load your saved details right now, so let's continue from here."
	msgFreshStart    = "No problem, let's start fresh."
	msgAskPOS        = "Great choice! Please select a POS model:"
	msgAskPG         = "Please select a payment gateway plan:"
	msgAskExisting   = "Perfect! Are you an existing customer with us?"
	msgAskMobile     = "Excellent! Please share your registered mobile number so I can fetch your KYC details."
	msgFetchingKYC   = "Let me fetch your KYC details... 🔍"
	msgKYCNotFound   = "I couldn't find existing KYC records for this mobile number, so we'll set you up as a new customer."
	msgNewCustomer   = "Welcome to our platform! 🎉 Since you're a new customer, I need to collect some additional business information."
	msgAskCategory   = "Please select your business category:"
	msgAskTurnover   = "Excellent choice! What's your business annual turnover? Please type your response (e.g., 1-5 Cr, 5-10 Cr, 10+ Cr)"
	msgAskNegotiate  = "Sure! Tell me what you're looking for, for example a lower MDR or a waived setup fee, and I'll check what we can do."
	msgNegotiateMore = "Of course. What else would you like us to adjust?"
	msgOfferIntro    = "Thanks for sharing. I checked with our pricing team."
	msgAskGST        = "Now let's get your documents. Please upload your GST certificate."
	msgOfferLocked   = "Great, the negotiated offer is locked in! 🤝"
	msgPlanSelected  = "Great, you've selected %s."
	msgResendOTP     = "🔄 Resending OTP to your %s..."
	msgStatusAsk     = "Please enter the email address or mobile number you used for your application."
	msgStatusNone    = "❌ No application found for %s. Please check the details and try again, or start a new application."
	msgStatusFound   = "I found an application for %s. For your security, I've sent OTPs to %s and %s. Please enter both codes to view your application status."
	msgStatusLoaded  = "✅ Verification successful! Here is your application status."
	msgStatusFailed  = "✅ Verification successful, but I couldn't load your application right now. Please try again shortly."
	msgAnythingElse  = "Is there anything else I can help you with?"
	msgAlreadyDone   = "Your onboarding is already complete (case %s). Our representative will be in touch shortly."

	msgInvalidName     = "Please enter your full name."
	msgInvalidBusiness = "Please enter your business name."
	msgInvalidEmail    = "Please enter a valid email address."
	msgEmailLocked     = "Your business email is already set to %s for this application and can't be changed."
	msgInvalidMobile   = "Please enter a valid 10-digit mobile number."
	msgInvalidCategory = "Please choose one of the listed business categories."
	msgInvalidTurnover = "Please tell me your annual turnover (e.g., 1-5 Cr, 5-10 Cr, 10+ Cr)."
	msgInvalidNote     = "Please tell me what you'd like us to adjust."
	msgInvalidContact  = "Please enter a valid email address or 10-digit mobile number."
	msgInvalidOTP      = "Please enter both 6-digit OTPs: one from your mobile and one from your email."
	msgWrongOTP        = "❌ The OTP you entered is incorrect or has expired. Please check and try again, or resend the OTP."
	msgWrongSlot       = "Please upload your %s first."
	msgEmptyFile       = "The upload didn't include a file name. Please upload your %s again."

	msgPickOption     = "Sorry, I didn't understand that choice. Please pick one of the options below."
	msgUploadExpected = "Please upload your %s to continue."
	msgNotUnderstood  = "Sorry, I didn't understand that. Please try again."
	msgUnknownStep    = "Sorry, this conversation is in an unknown state. Please start a new application."
)

var uploadSlots = map[domain.Step]domain.UploadSlot{
	domain.StepGSTUpload:           domain.SlotGST,
	domain.StepPANUpload:           domain.SlotPAN,
	domain.StepIncorporationUpload: domain.SlotIncorporation,
	domain.StepMOAUpload:           domain.SlotMOA,
}

var slotTitles = map[domain.UploadSlot]string{
	domain.SlotGST:           "GST certificate",
	domain.SlotPAN:           "PAN document",
	domain.SlotIncorporation: "Incorporation Certificate",
	domain.SlotMOA:           "MOA document",
}

func orNotFound(v string) string {
	if v == "" {
		return "not found"
	}
	return v
}

func kycFoundMessage(k *domain.KYCRecord) string {
	return fmt.Sprintf("✅ KYC Details Found!\n\n"+
		"👤 Name: %s\n"+
		"🏢 Business: %s\n"+
		"📋 Registration: %s\n"+
		"📍 Address: %s\n"+
		"🏦 Account: %s\n"+
		"✔️ Status: %s\n\n"+
		"Would you like to link this account with your new business?",
		k.FullName, k.BusinessName, k.RegistrationNumber, k.Address, k.AccountNumber, strings.ToUpper(string(k.Status)))
}

func categoryPrompt(prefix ...string) []string {
	return append(prefix, msgAskCategory)
}

func pricingMessage(cat *catalog.Catalog) string {
	return "Thanks! Here are the pricing plans for your business:\n\n" +
		catalog.Describe(cat.PricingPlans) +
		"\n\nPick a plan, or let me know if you'd like to negotiate."
}

func uploadedMessage(slot domain.UploadSlot, fileName string, k *domain.KYCRecord) string {
	if k == nil {
		k = &domain.KYCRecord{}
	}
	switch slot {
	case domain.SlotGST:
		return fmt.Sprintf("✅ GST document %q uploaded successfully! GST Number extracted: %s. Now please upload your PAN document.",
			fileName, orNotFound(k.GSTNumber))
	case domain.SlotPAN:
		return fmt.Sprintf("✅ PAN document %q uploaded successfully! PAN Number extracted: %s. Now please upload your Incorporation Certificate.",
			fileName, orNotFound(k.PANNumber))
	case domain.SlotIncorporation:
		return fmt.Sprintf("✅ Incorporation Certificate %q uploaded successfully! Registration Number extracted: %s. Finally, please upload your MOA document.",
			fileName, orNotFound(k.RegistrationNumber))
	default:
		return fmt.Sprintf("✅ MOA document %q uploaded successfully! Director and shareholding details extracted.", fileName)
	}
}

// evaluationMessage summarizes the extracted compliance data after the last
// upload. A shareholding total other than 100% is reported, not enforced.
func evaluationMessage(f domain.Fields) string {
	k := f.KYC
	if k == nil {
		k = &domain.KYCRecord{}
	}
	var b strings.Builder
	b.WriteString("🎉 Document processing complete! Here's a summary of your application:\n\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", f.Name)
	fmt.Fprintf(&b, "🏢 Business: %s\n", f.BusinessName)
	fmt.Fprintf(&b, "📧 Email: %s\n", f.Email)
	fmt.Fprintf(&b, "🏷️ Category: %s\n", f.BusinessCategory)
	fmt.Fprintf(&b, "💰 Turnover: %s\n", f.AnnualTurnover)
	fmt.Fprintf(&b, "📋 GST: %s\n", orNotFound(k.GSTNumber))
	fmt.Fprintf(&b, "🪪 PAN: %s\n", orNotFound(k.PANNumber))
	fmt.Fprintf(&b, "📜 Registration: %s\n", orNotFound(k.RegistrationNumber))

	if len(k.Directors) > 0 {
		b.WriteString("\n👥 Directors:\n")
		for _, d := range k.Directors {
			fmt.Fprintf(&b, "• %s (%s) - %s\n", d.Name, d.Designation, d.Shareholding)
		}
	}
	if len(k.Shareholding) > 0 {
		b.WriteString("\n📊 Shareholding:\n")
		for _, s := range k.Shareholding {
			fmt.Fprintf(&b, "• %s: %g%% %s\n", s.ShareholderName, s.SharePercentage, s.ShareType)
		}
		if total := k.ShareholdingTotal(); total != 100 {
			fmt.Fprintf(&b, "\n⚠️ Shareholding adds up to %g%% instead of 100%%. Our KYC team will review it.\n", total)
		}
	}
	b.WriteString("\nPlease download your complete application PDF to continue.")
	return b.String()
}

func linkConfirmedMessage(f domain.Fields) string {
	account := ""
	if f.KYC != nil {
		account = f.KYC.AccountNumber
	}
	return fmt.Sprintf("Perfect! ✅ Account linking confirmed. Your existing account %s will be linked to %s.\n\n"+
		"Next, I'll generate your complete application PDF and verify your contact details.",
		orNotFound(account), f.BusinessName)
}

func newAccountMessage(f domain.Fields, caseNo string) string {
	return fmt.Sprintf("No problem! We'll create a new account for your business.\n\n"+
		"📋 Case Number: %s\n"+
		"👤 Name: %s\n"+
		"🏢 Business: %s\n"+
		"📧 Email: %s\n"+
		"📱 Mobile: %s\n"+
		"🏦 Account Type: New Separate Account\n\n"+
		"Our KYC team will contact you within 24 hours to complete the verification.",
		caseNo, f.Name, f.BusinessName, f.Email, f.MobileNumber)
}

func pdfMessage(linked bool) string {
	if linked {
		return "📄 Comprehensive PDF downloaded successfully! It includes your linked account details and all uploaded documents."
	}
	return "📄 Complete application PDF downloaded successfully! It includes your business details, documents and director information."
}

func otpSentMessage(e Effect) string {
	if e.Mobile == e.Email {
		return fmt.Sprintf("🔐 For final verification, I've sent two OTPs to your email %s. Please enter both 6-digit codes.", e.Email)
	}
	return fmt.Sprintf("🔐 For final verification, I've sent OTPs to your mobile %s and your email %s. Please enter both 6-digit codes.",
		e.Mobile, e.Email)
}

func (m *Machine) completionMessage(f domain.Fields) string {
	rep := m.catalog.Rep()
	service := string(f.ServiceType)
	if service == "" {
		service = "Not selected"
	}
	var b strings.Builder
	b.WriteString("🎉 CONGRATULATIONS! Your merchant onboarding is complete!\n\n")
	fmt.Fprintf(&b, "📋 Case Number: %s\n\n", f.CaseNumber)
	b.WriteString("🏪 Merchant Details:\n")
	fmt.Fprintf(&b, "• Name: %s\n", f.Name)
	fmt.Fprintf(&b, "• Business: %s\n", f.BusinessName)
	fmt.Fprintf(&b, "• Email: %s\n", f.Email)
	if f.MobileNumber != "" {
		fmt.Fprintf(&b, "• Mobile: %s\n", f.MobileNumber)
	}
	b.WriteString("\n🏦 Account Information:\n")
	fmt.Fprintf(&b, "• Service: %s\n", service)
	if f.SelectedPOSModel != "" {
		fmt.Fprintf(&b, "• POS Model: %s\n", f.SelectedPOSModel)
	}
	if f.SelectedPGPlan != "" {
		fmt.Fprintf(&b, "• PG Plan: %s\n", f.SelectedPGPlan)
	}
	if f.SelectedPricingPlan != "" {
		fmt.Fprintf(&b, "• Pricing: %s\n", f.SelectedPricingPlan)
	}
	if f.KYC != nil && f.KYC.AccountNumber != "" && f.ConfirmLinking != nil && *f.ConfirmLinking {
		fmt.Fprintf(&b, "• Linked Account: %s\n", f.KYC.AccountNumber)
	}
	b.WriteString("\n👨‍💼 Your Dedicated Representative:\n")
	fmt.Fprintf(&b, "• %s\n", rep.Name)
	fmt.Fprintf(&b, "• 📞 %s\n\n", rep.Mobile)
	b.WriteString("Your account will be activated within 2-4 hours. You'll receive a confirmation email shortly.\n")
	if m.catalog.SupportEmail != "" {
		fmt.Fprintf(&b, "For any questions, write to %s.", m.catalog.SupportEmail)
	}
	return b.String()
}

// mask hides the middle of a contact detail shown back to the user.
func mask(contact string) string {
	if at := strings.IndexByte(contact, '@'); at > 0 {
		local, host := contact[:at], contact[at:]
		if len(local) <= 2 {
			return local[:1] + "***" + host
		}
		return local[:2] + "***" + host
	}
	if len(contact) <= 4 {
		return contact
	}
	return strings.Repeat("*", len(contact)-4) + contact[len(contact)-4:]
}
