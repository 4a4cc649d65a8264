package crawler

const scrollHeightJS = `document.body.scrollHeight`

const scrollToBottomJS = `window.scrollTo(0, document.body.scrollHeight)`

// dismissConsentJS clicks the first visible cookie-consent button, if any
const dismissConsentJS = `
(() => {
	const candidates = Array.from(document.querySelectorAll(
		'.cookie-consent__button, #cookie-accept, [id*="cookie-accept"], .CybotCookiebotDialogBodyButton, button'
	));
	const btn = candidates.find(el => {
		const visible = !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
		if (!visible || el.disabled) return false;
		if (el.tagName === 'BUTTON' && !/accept/i.test(el.textContent || '')) {
			return el.matches('.cookie-consent__button, .CybotCookiebotDialogBodyButton');
		}
		return true;
	});
	if (!btn) return false;
	btn.click();
	return true;
})()`
