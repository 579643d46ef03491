package browser

// interactiveElementsScript collects the interactive and labelled elements of
// the current page for the page_state tool. It returns an array of plain
// objects; the Go side decodes them into entity.Element. Per-tag caps keep
// the payload bounded on link-heavy pages such as Wikipedia.
const interactiveElementsScript = `(() => {
	const out = [];
	const taken = new Set();

	const interactive = ['a', 'button', 'input', 'select', 'textarea'];
	const labelled = ['h1', 'h2', 'h3', 'label', 'span', 'div'];

	const cssEscape = (v) => v.replace(/"/g, '\\"');

	const buildSelector = (el) => {
		const tag = el.tagName.toLowerCase();

		for (const attr of ['data-testid', 'data-test-id', 'data-test', 'data-qa']) {
			const v = el.getAttribute(attr);
			if (v) return tag + '[' + attr + '="' + cssEscape(v) + '"]';
		}

		if (el.id && /^[A-Za-z][\w-]*$/.test(el.id)) {
			return '#' + el.id;
		}

		if (el.name && interactive.includes(tag)) {
			return tag + '[name="' + cssEscape(el.name) + '"]';
		}

		const aria = el.getAttribute('aria-label');
		if (aria && aria.length < 80) {
			return tag + '[aria-label="' + cssEscape(aria) + '"]';
		}

		if (tag === 'input' && el.type) {
			if (el.placeholder) {
				return 'input[placeholder="' + cssEscape(el.placeholder) + '"]';
			}
			return 'input[type="' + el.type + '"]';
		}

		// Positional fallback: walk up until an id anchors the path.
		const path = [];
		let cur = el;
		for (let depth = 0; cur && cur.tagName && depth < 4; depth++) {
			if (cur.id) {
				path.unshift('#' + cur.id);
				break;
			}
			const siblings = cur.parentElement ? Array.from(cur.parentElement.children) : [];
			const idx = siblings.indexOf(cur);
			path.unshift(cur.tagName.toLowerCase() + (idx >= 0 ? ':nth-child(' + (idx + 1) + ')' : ''));
			cur = cur.parentElement;
		}
		return path.join(' > ') || tag;
	};

	const visibleRect = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return null;
		if (r.bottom < -300 || r.top > window.innerHeight + 300) return null;
		const cs = window.getComputedStyle(el);
		if (cs.display === 'none' || cs.visibility === 'hidden' || cs.opacity === '0') return null;
		return r;
	};

	const textOf = (el) => {
		let t = el.value || el.innerText || el.textContent || el.getAttribute('aria-label') || '';
		t = t.trim().replace(/\s+/g, ' ');
		return t.length > 180 ? t.slice(0, 180) + '…' : t;
	};

	const collect = (tags, cap) => {
		for (const tag of tags) {
			let n = 0;
			for (const el of document.getElementsByTagName(tag)) {
				if (n >= cap || taken.has(el)) continue;
				const rect = visibleRect(el);
				if (!rect) continue;
				taken.add(el);
				n++;

				const cs = window.getComputedStyle(el);
				const role = el.getAttribute('role');
				const clickable = interactive.includes(tag) ||
					role === 'button' || role === 'link' || role === 'tab' ||
					el.onclick !== null || cs.cursor === 'pointer';

				const attrs = {};
				if (el.type) attrs.type = el.type;
				if (el.name) attrs.name = el.name;
				if (el.placeholder) attrs.placeholder = el.placeholder.slice(0, 60);
				if (el.href) attrs.href = el.href.slice(0, 120);
				if (role) attrs.role = role;
				const aria = el.getAttribute('aria-label');
				if (aria) attrs['aria-label'] = aria.slice(0, 100);

				out.push({
					tag: tag,
					text: textOf(el),
					selector: buildSelector(el),
					attributes: attrs,
					visible: true,
					clickable: clickable,
					x: rect.left,
					y: rect.top,
					width: rect.width,
					height: rect.height
				});
			}
		}
	};

	collect(interactive, 60);
	collect(labelled, 20);
	return out;
})()`
