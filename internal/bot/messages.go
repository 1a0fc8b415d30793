package bot

const (
	MsgStart = `
		Send me a clear photo of the affected skin area, then use /analyze.

		/analyze - analyze the current photo
		/reset - forget the current photo and result

		This is not a substitute for professional medical advice.
	`
	MsgImageSelected      = "Photo received. Send /analyze to analyze it."
	MsgNotAnImage         = "Please upload an image file"
	MsgNoImage            = "Send a photo first."
	MsgAnalyzing          = "Analyzing..."
	MsgAnalysisInProgress = "An analysis is already running, please wait."
	MsgAnalysisFailed     = "Failed to analyze image. Please try again."
	MsgDownloadFailed     = "Could not download the photo. Please try again."
	MsgReset              = "Ok, cleared."
	MsgUnknownCommand     = "Unknown command. Send a photo or use /start."
)
