package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"easyapply/internal/engine"
	"easyapply/internal/form"
)

const modalSelector = ".jobs-easy-apply-modal"

// stableWait is how long the modal must stop mutating after an advance
// click before the next step is enumerated.
const stableWait = time.Second

// ApplyForm drives the Easy Apply modal for one posting at a time. It
// implements engine.FormSession; the engine decides what to write, this
// type only touches the DOM.
type ApplyForm struct {
	session *Session
	log     *zap.Logger
}

// NewApplyForm returns the form provider bound to a session.
func NewApplyForm(session *Session, log *zap.Logger) *ApplyForm {
	return &ApplyForm{session: session, log: log}
}

func (a *ApplyForm) page(ctx context.Context) *rod.Page {
	return a.session.page.Context(ctx)
}

// Open clicks the posting's card, waits for the detail pane, and opens
// the Easy Apply modal. Failing to find the modal is an attempt-local
// error; only an unresponsive session aborts the run.
func (a *ApplyForm) Open(ctx context.Context, p engine.Posting) error {
	page := a.page(ctx)

	card, err := page.Timeout(a.session.cfg.FieldWait()).
		Element(fmt.Sprintf(`[data-ea-card="%s"]`, p.Ref))
	if err != nil {
		return a.session.fail(fmt.Errorf("job card not found: %w", err))
	}
	if link, err := card.Element("a"); err == nil {
		err = link.Click(proto.InputMouseButtonLeft, 1)
		if err != nil {
			return a.session.fail(fmt.Errorf("click job card: %w", err))
		}
	} else if err := card.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return a.session.fail(fmt.Errorf("click job card: %w", err))
	}

	if _, err := page.Timeout(a.session.cfg.NavigationTimeout()).
		Element(".jobs-details, .job-view-layout, .jobs-unified-top-card"); err != nil {
		return a.session.fail(fmt.Errorf("job detail pane did not load: %w", err))
	}

	applyBtn, err := page.Timeout(a.session.cfg.FieldWait()).
		ElementR("button", "/easy apply/i")
	if err != nil {
		return a.session.fail(fmt.Errorf("easy apply button not found: %w", err))
	}
	if err := applyBtn.ScrollIntoView(); err != nil {
		return a.session.fail(fmt.Errorf("scroll to apply button: %w", err))
	}
	if err := applyBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return a.session.fail(fmt.Errorf("click apply button: %w", err))
	}

	if _, err := page.Timeout(a.session.cfg.FieldWait()).Element(modalSelector); err != nil {
		return a.session.fail(fmt.Errorf("easy apply modal did not open: %w", err))
	}
	a.log.Debug("easy apply modal open", zap.String("title", p.Title), zap.String("company", p.Company))
	return nil
}

// fieldsScript enumerates the visible fields of the current modal step
// and tags each with a stable ref attribute in the same evaluation, so
// refs cannot go stale between enumeration and writing. Label lookup
// follows the platform's markup: aria-label, placeholder, label[for],
// enclosing label, fieldset legend, preceding sibling.
const fieldsScript = `
() => {
	const modal = document.querySelector('.jobs-easy-apply-modal');
	if (!modal) return [];
	const labelFor = (el) => {
		const aria = el.getAttribute('aria-label');
		if (aria) return aria;
		const ph = el.getAttribute('placeholder');
		if (ph) return ph;
		if (el.id) {
			const lab = modal.querySelector('label[for="' + el.id + '"]');
			if (lab) return lab.innerText;
		}
		const anc = el.closest('label');
		if (anc) return anc.innerText;
		const fs = el.closest('fieldset');
		if (fs) {
			const legend = fs.querySelector('legend, span');
			if (legend) return legend.innerText;
		}
		const prev = el.previousElementSibling;
		if (prev && prev.tagName === 'LABEL') return prev.innerText;
		return '';
	};
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};
	const isRequired = (el) =>
		el.required || el.getAttribute('aria-required') === 'true';

	const out = [];
	let i = 0;
	const push = (el, type, options, value, label) => {
		el.dataset.eaRef = String(i);
		out.push({
			ref: String(i),
			type: type,
			label: label !== undefined ? label : labelFor(el),
			required: isRequired(el),
			options: options || [],
			value: value || '',
		});
		i++;
	};

	modal.querySelectorAll(
		'input[type=text], input[type=email], input[type=tel], input[type=url]'
	).forEach(el => { if (visible(el)) push(el, el.type, null, el.value); });

	modal.querySelectorAll('input[type=number]').forEach(el => {
		if (visible(el)) push(el, 'number', null, el.value);
	});

	modal.querySelectorAll('textarea').forEach(el => {
		if (visible(el)) push(el, 'textarea', null, el.value);
	});

	modal.querySelectorAll('select').forEach(el => {
		if (!visible(el)) return;
		const options = Array.from(el.options)
			.map(o => o.text.trim())
			.filter(t => t && t !== 'Select an option');
		const value = el.value && el.value !== 'Select an option' ? el.value : '';
		push(el, 'select', options, value);
	});

	const seenGroups = new Set();
	const radios = Array.from(modal.querySelectorAll('input[type=radio]'));
	radios.forEach(el => {
		const name = el.name || '';
		if (seenGroups.has(name)) return;
		seenGroups.add(name);
		const group = radios.filter(r => (r.name || '') === name);
		const options = group.map(r => {
			const lab = (r.id && modal.querySelector('label[for="' + r.id + '"]')) || r.closest('label');
			return lab ? lab.innerText.trim() : r.value;
		});
		const checked = group.some(r => r.checked);
		push(el, 'radio', options, checked ? 'checked' : '');
	});

	modal.querySelectorAll('input[type=checkbox]').forEach(el => {
		if (visible(el)) push(el, 'checkbox', ['Yes'], el.checked ? 'Yes' : '');
	});

	modal.querySelectorAll('input[type=file]').forEach(el => {
		push(el, 'file', null, '');
	});

	return out;
}
`

// Fields enumerates the current step's raw descriptors.
func (a *ApplyForm) Fields(ctx context.Context) ([]form.Descriptor, error) {
	res, err := a.page(ctx).Timeout(a.session.cfg.FieldWait()).Evaluate(&rod.EvalOptions{
		JS:           fieldsScript,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, a.session.fail(fmt.Errorf("enumerate step fields: %w", err))
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal step fields: %w", err)
	}
	var descriptors []form.Descriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return nil, fmt.Errorf("decode step fields: %w", err)
	}
	return descriptors, nil
}

func (a *ApplyForm) element(ctx context.Context, ref string) (*rod.Element, error) {
	el, err := a.page(ctx).Timeout(a.session.cfg.FieldWait()).
		Element(fmt.Sprintf(`%s [data-ea-ref="%s"]`, modalSelector, ref))
	if err != nil {
		return nil, a.session.fail(fmt.Errorf("field %s not found: %w", ref, err))
	}
	return el, nil
}

// Write enters a value into the referenced field in the way its element
// type expects: option selection for selects and radios, a toggle for
// checkboxes, real keystrokes for text inputs.
func (a *ApplyForm) Write(ctx context.Context, ref, value string) error {
	el, err := a.element(ctx, ref)
	if err != nil {
		return err
	}

	kind, err := el.Eval(`() => ({tag: this.tagName.toLowerCase(), type: this.type || ''})`)
	if err != nil {
		return a.session.fail(fmt.Errorf("inspect field %s: %w", ref, err))
	}
	tag := kind.Value.Get("tag").Str()
	typ := kind.Value.Get("type").Str()

	switch {
	case tag == "select":
		if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
			return a.session.fail(fmt.Errorf("select option %q: %w", value, err))
		}
	case typ == "radio":
		if err := a.pickRadio(el, value); err != nil {
			return err
		}
	case typ == "checkbox":
		checked, err := el.Property("checked")
		if err != nil {
			return a.session.fail(fmt.Errorf("read checkbox %s: %w", ref, err))
		}
		want := strings.EqualFold(value, "yes") || strings.EqualFold(value, "true")
		if want != checked.Bool() {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return a.session.fail(fmt.Errorf("toggle checkbox %s: %w", ref, err))
			}
		}
	default:
		if err := el.SelectAllText(); err != nil {
			a.log.Debug("select existing text failed", zap.String("ref", ref), zap.Error(err))
		}
		if err := el.Input(value); err != nil {
			return a.session.fail(fmt.Errorf("type into field %s: %w", ref, err))
		}
	}
	return nil
}

// pickRadio clicks the radio in the element's group whose label matches
// the chosen option text.
func (a *ApplyForm) pickRadio(el *rod.Element, value string) error {
	_, err := el.Eval(`(want) => {
		const name = this.name || '';
		const modal = document.querySelector('.jobs-easy-apply-modal') || document;
		const group = Array.from(modal.querySelectorAll('input[type=radio]'))
			.filter(r => (r.name || '') === name);
		const target = group.find(r => {
			const lab = (r.id && modal.querySelector('label[for="' + r.id + '"]')) || r.closest('label');
			const text = (lab ? lab.innerText : r.value) || '';
			return text.trim().toLowerCase().includes(want.toLowerCase()) ||
				want.toLowerCase().includes(text.trim().toLowerCase());
		});
		if (!target) throw new Error('no radio option matches: ' + want);
		(target.labels && target.labels[0] ? target.labels[0] : target).click();
	}`, value)
	if err != nil {
		return a.session.fail(fmt.Errorf("pick radio option %q: %w", value, err))
	}
	return nil
}

// Attach uploads a document to the referenced file input.
func (a *ApplyForm) Attach(ctx context.Context, ref, path string) error {
	el, err := a.element(ctx, ref)
	if err != nil {
		return err
	}
	if err := el.SetFiles([]string{path}); err != nil {
		return a.session.fail(fmt.Errorf("attach %s: %w", path, err))
	}
	a.log.Info("document attached", zap.String("path", path))
	return nil
}

// button finds a visible modal button whose text matches pattern, or
// ok=false when none is present right now.
func (a *ApplyForm) button(ctx context.Context, pattern string) (*rod.Element, bool, error) {
	el, err := a.page(ctx).Timeout(a.session.cfg.FieldWait()).
		ElementR(modalSelector+" button", pattern)
	if err != nil {
		if a.session.alive() {
			return nil, false, nil
		}
		return nil, false, a.session.fail(err)
	}
	return el, true, nil
}

// CanSubmit reports whether the terminal submit action is on screen.
func (a *ApplyForm) CanSubmit(ctx context.Context) (bool, error) {
	_, ok, err := a.button(ctx, "/submit application/i")
	return ok, err
}

// Advance clicks the next/continue/review control of the current step.
func (a *ApplyForm) Advance(ctx context.Context) (bool, error) {
	btn, ok, err := a.button(ctx, "/^(next|continue|review)/i")
	if err != nil || !ok {
		return false, err
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, a.session.fail(fmt.Errorf("advance form: %w", err))
	}
	if err := a.page(ctx).Timeout(a.session.cfg.FieldWait()).WaitStable(stableWait); err != nil {
		// The modal re-renders in place; a stability timeout here is
		// not fatal, the next Fields call waits again.
		a.log.Debug("modal did not settle after advance", zap.Error(err))
	}
	return true, nil
}

// Submit performs the final submit action and dismisses the
// confirmation dialog.
func (a *ApplyForm) Submit(ctx context.Context) error {
	btn, ok, err := a.button(ctx, "/submit application/i")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("submit action not present")
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return a.session.fail(fmt.Errorf("submit application: %w", err))
	}
	// Post-submit confirmation dialog.
	if dismiss, err := a.page(ctx).Timeout(a.session.cfg.FieldWait()).
		Element(`button[aria-label="Dismiss"]`); err == nil {
		_ = dismiss.Click(proto.InputMouseButtonLeft, 1)
	}
	return nil
}

// Discard dismisses the modal without submitting and confirms the
// discard prompt when it appears.
func (a *ApplyForm) Discard(ctx context.Context) error {
	page := a.page(ctx)
	dismiss, err := page.Timeout(a.session.cfg.FieldWait()).
		Element(`button[aria-label="Dismiss"]`)
	if err != nil {
		return a.session.fail(fmt.Errorf("dismiss control not found: %w", err))
	}
	if err := dismiss.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return a.session.fail(fmt.Errorf("dismiss modal: %w", err))
	}
	if confirm, err := page.Timeout(a.session.cfg.FieldWait()).
		ElementR("button", "/discard/i"); err == nil {
		_ = confirm.Click(proto.InputMouseButtonLeft, 1)
	}
	return nil
}
